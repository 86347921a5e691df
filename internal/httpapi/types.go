// Package httpapi is the HTTP resolver (C8): it maps a decoded path,
// an Accept-Encoding list, and an optional Range onto a 200/206/404
// response carrying an IC-Certificate header, and exposes the
// management operations (C5/C6/C9) as JSON endpoints. It is the only
// package that registers routes and serves HTTP; host reads the caller
// from an *http.Request, and assetstore uses net/http only for S3
// status codes.
package httpapi

import "certassets.dev/internal/rcbytes"

// Response is a transport-agnostic HTTP response record, mirroring the
// {status_code, headers, body, streaming_strategy?} shape the host
// delivers back to its gateway (spec.md §6 HTTP framing). Body shares
// the same rcbytes.Bytes handle the served ContentChunk carries, so a
// large asset's bytes aren't copied just to leave internal/assetstore.
type Response struct {
	StatusCode int
	// Headers preserves emission order: Content-Type first,
	// Content-Encoding next if not identity, IC-Certificate next, then
	// for 206 Content-Range and Accept-Ranges (spec.md §4.8/§6).
	Headers []HeaderField
	Body    rcbytes.Bytes
	Token   *StreamingToken
}

type HeaderField struct {
	Name  string
	Value string
}

func (r *Response) addHeader(name, value string) {
	r.Headers = append(r.Headers, HeaderField{Name: name, Value: value})
}

// StreamingToken is the continuation a 200/206 response carries when
// its served chunk isn't the encoding's last one.
type StreamingToken struct {
	Key             string   `json:"key"`
	ContentEncoding string   `json:"content_encoding"`
	Index           int      `json:"index"`
	Sha256          [32]byte `json:"sha256"`
}

// StreamingCallbackResponse is what http_request_streaming_callback
// returns for a given StreamingToken. Body and ChunkTree (the chunk's
// hash-tree witness) are rcbytes.Bytes for the same reason Response.Body
// is: both are read straight out of store state without copying.
type StreamingCallbackResponse struct {
	Body      rcbytes.Bytes   `json:"body"`
	Token     *StreamingToken `json:"token,omitempty"`
	ChunkTree rcbytes.Bytes   `json:"chunk_tree"`
}
