package httpapi

import (
	"encoding/base64"
	"fmt"
	"strings"

	"certassets.dev/internal/assetstore"
	"certassets.dev/internal/coreerr"
	"certassets.dev/internal/hashtree"
	"certassets.dev/internal/rcbytes"
	"certassets.dev/internal/urlpath"
)

// contentRangeInfo is the chunk located for a given Range start byte,
// alongside the byte bounds the Content-Range header reports.
type contentRangeInfo struct {
	startByte, endByte, total uint64
	index                     int
}

// locateChunkForRange finds the first chunk containing start. If none
// does, it falls back to chunk 0's bounds — or, if enc has zero
// chunks, to the zero value — reproducing original_source's
// get_chunk_index_by_range exactly, bug included: a caller indexing
// enc.ContentChunks[0] on a zero-chunk encoding will panic, the same
// way the original traps (spec.md §9 open questions).
func locateChunkForRange(enc *assetstore.AssetEncoding, start uint64) contentRangeInfo {
	for i, c := range enc.ContentChunks {
		if start-c.StartByte < uint64(c.Content.Len()) {
			return contentRangeInfo{startByte: c.StartByte, endByte: c.EndByte(), total: enc.TotalLength, index: i}
		}
	}
	if len(enc.ContentChunks) > 0 {
		first := enc.ContentChunks[0]
		return contentRangeInfo{startByte: first.StartByte, endByte: first.EndByte(), total: enc.TotalLength, index: 0}
	}
	return contentRangeInfo{}
}

// matchedEncoding is what firstMatchingEncoding found: labelName is
// what the Content-Encoding header reports, bodyEncoding is whose
// content_chunks are actually served. They diverge exactly in the
// preserved quirk spec.md's open questions call out: when a
// caller-requested encoding is present but uncertified, and identity
// is certified, the response serves identity's bytes while still
// claiming the requested encoding's name.
type matchedEncoding struct {
	labelName    string
	bodyEncoding *assetstore.AssetEncoding
}

func firstMatchingEncoding(asset *assetstore.Asset, encodings []string) (matchedEncoding, bool) {
	for _, name := range encodings {
		enc, present := asset.Encodings[name]
		if !present {
			continue
		}
		if enc.Certified {
			return matchedEncoding{labelName: name, bodyEncoding: enc}, true
		}
		if idEnc, ok := asset.Encodings["identity"]; ok && idEnc.Certified {
			return matchedEncoding{labelName: name, bodyEncoding: idEnc}, true
		}
	}
	return matchedEncoding{}, false
}

// firstCertifiedEncoding is firstMatchingEncoding without the
// identity-fallback quirk: the SPA index redirect only ever serves
// "/index.html" itself, so there's no caller-requested encoding name
// to mislabel a substituted identity body with, matching
// original_source's index-redirect branch, which only checks
// enc.certified.
func firstCertifiedEncoding(asset *assetstore.Asset, encodings []string) (matchedEncoding, bool) {
	for _, name := range encodings {
		enc, present := asset.Encodings[name]
		if present && enc.Certified {
			return matchedEncoding{labelName: name, bodyEncoding: enc}, true
		}
	}
	return matchedEncoding{}, false
}

// Resolve implements the HTTP resolver (C8): it maps a raw request
// path, an ordered Accept-Encoding list, and an optional Range onto a
// certified 200/206/404 response.
func (srv *Server) Resolve(rawURL string, acceptEncodings []string, rng *urlpath.Range) Response {
	stripped := urlpath.StripQuery(rawURL)
	path, err := urlpath.Decode([]byte(stripped))
	if err != nil {
		return Response{
			StatusCode: 400,
			Headers:    []HeaderField{{Name: "Content-Type", Value: "text/plain"}},
			Body:       rcbytes.FromString(fmt.Sprintf("failed to decode path '%s': %v", stripped, err)),
		}
	}

	encodings := append(append([]string{}, acceptEncodings...), "identity")

	if indexAsset, ok := srv.store.LookupAsset(assetstore.IndexFallbackPath); ok {
		if _, hasPath := srv.store.AssetHashEntry(path); !hasPath {
			if _, hasIndex := srv.store.AssetHashEntry(assetstore.IndexFallbackPath); hasIndex {
				if resp, ok := srv.resolveSPAFallback(path, indexAsset, encodings, rng); ok {
					return resp
				}
			}
		}
	}

	asset, ok := srv.store.LookupAsset(path)
	certHeader := srv.certificateHeaderFor(path, asset, rng)
	if !ok {
		return notFound(certHeader)
	}

	match, ok := firstMatchingEncoding(asset, encodings)
	if !ok {
		return notFound(certHeader)
	}
	return srv.buildResponse(asset, match, path, rng, certHeader)
}

func (srv *Server) resolveSPAFallback(requestedPath string, indexAsset *assetstore.Asset, encodings []string, rng *urlpath.Range) (Response, bool) {
	absence := srv.store.AssetWitness(requestedPath)
	presence := srv.store.AssetWitness(assetstore.IndexFallbackPath)
	merged, err := hashtree.Merge(absence, presence)
	if err != nil {
		// merge_hash_trees failing is an integrity trap in
		// spec.md's vocabulary; the HTTP layer has no good response to
		// give for a broken certification, so the caller is expected
		// to treat this as a 5xx the way a trapped canister call would.
		panic(fmt.Sprintf("httpapi: %v", err))
	}

	match, ok := firstCertifiedEncoding(indexAsset, encodings)
	if !ok {
		return Response{}, false
	}

	chunkIndex := 0
	var rangeInfo contentRangeInfo
	if rng != nil {
		rangeInfo = locateChunkForRange(match.bodyEncoding, rng.Start)
		chunkIndex = rangeInfo.index
	}

	chunkWitness, hasChunkTree := srv.store.ChunkWitness(assetstore.IndexFallbackPath, chunkIndex)
	if !hasChunkTree {
		panic("httpapi: " + assetstore.IndexFallbackPath + " not found in chunks map")
	}

	certHeader := srv.buildCertificateHeader(hashtree.HTTPAssetsLabel(merged), chunkWitness, chunkIndex)

	// The streaming continuation must key back into the asset that was
	// actually served: a ranged request still names the route the
	// caller asked for (original_source's 206 branch), but the
	// non-range 200 names INDEX_FILE itself, since that's the only key
	// StreamingCallback's GetChunk call can resolve.
	tokenKey := assetstore.IndexFallbackPath
	if rng != nil {
		tokenKey = requestedPath
	}

	resp := srv.buildResponseFor(indexAsset, match, tokenKey, rng, rangeInfo, chunkIndex, certHeader)
	return resp, true
}

func (srv *Server) certificateHeaderFor(path string, asset *assetstore.Asset, rng *urlpath.Range) HeaderField {
	chunkIndex := 0
	if rng != nil && asset != nil {
		if match, ok := firstMatchingEncoding(asset, assetstore.EncodingPriority); ok {
			chunkIndex = locateChunkForRange(match.bodyEncoding, rng.Start).index
		}
	}
	chunkWitness, _ := srv.store.ChunkWitness(path, chunkIndex)
	witness := srv.store.AssetWitness(path)
	return srv.buildCertificateHeader(hashtree.HTTPAssetsLabel(witness), chunkWitness, chunkIndex)
}

func (srv *Server) buildCertificateHeader(treeWitness, chunkWitness *hashtree.Node, chunkIndex int) HeaderField {
	cert, ok := srv.host.DataCertificate()
	if !ok {
		panic(fmt.Sprintf("httpapi: %v", coreerr.ErrNoDataCertificate))
	}

	treeWire, err := hashtree.Serialize(treeWitness)
	if err != nil {
		panic(fmt.Sprintf("httpapi: serialize tree witness: %v", err))
	}

	var chunkTreeB64 string
	if chunkWitness != nil {
		chunkWire, err := hashtree.Serialize(chunkWitness)
		if err != nil {
			panic(fmt.Sprintf("httpapi: serialize chunk witness: %v", err))
		}
		chunkTreeB64 = base64.StdEncoding.EncodeToString(chunkWire)
	}

	value := fmt.Sprintf("certificate=:%s:, tree=:%s:, chunk_tree=:%s:, chunk_index=:%d:",
		base64.StdEncoding.EncodeToString(cert),
		base64.StdEncoding.EncodeToString(treeWire),
		chunkTreeB64,
		chunkIndex,
	)
	return HeaderField{Name: "IC-Certificate", Value: value}
}

func notFound(certHeader HeaderField) Response {
	return Response{
		StatusCode: 404,
		Headers:    []HeaderField{certHeader},
		Body:       rcbytes.FromString("not found"),
	}
}

func (srv *Server) buildResponse(asset *assetstore.Asset, match matchedEncoding, key string, rng *urlpath.Range, certHeader HeaderField) Response {
	chunkIndex := 0
	var rangeInfo contentRangeInfo
	if rng != nil {
		rangeInfo = locateChunkForRange(match.bodyEncoding, rng.Start)
		chunkIndex = rangeInfo.index
	}
	return srv.buildResponseFor(asset, match, key, rng, rangeInfo, chunkIndex, certHeader)
}

func (srv *Server) buildResponseFor(asset *assetstore.Asset, match matchedEncoding, key string, rng *urlpath.Range, rangeInfo contentRangeInfo, chunkIndex int, certHeader HeaderField) Response {
	resp := Response{StatusCode: 200}
	resp.addHeader("Content-Type", asset.ContentType)
	if match.labelName != "identity" {
		resp.addHeader("Content-Encoding", match.labelName)
	}
	resp.addHeader(certHeader.Name, certHeader.Value)

	if rng != nil {
		resp.StatusCode = 206
		resp.addHeader("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rangeInfo.startByte, rangeInfo.endByte, rangeInfo.total))
		resp.addHeader("Accept-Ranges", "bytes")
	}

	resp.Body = match.bodyEncoding.ContentChunks[chunkIndex].Content

	if chunkIndex+1 < len(match.bodyEncoding.ContentChunks) {
		resp.Token = &StreamingToken{
			Key:             key,
			ContentEncoding: match.labelName,
			Index:           chunkIndex + 1,
			Sha256:          match.bodyEncoding.Sha256,
		}
	}
	return resp
}

// StreamingCallback resolves a continuation token into the next
// chunk, re-reading current state rather than trusting the token's
// view: the asset may have been rewritten since the initial response,
// in which case the digest comparison below reports sha256 mismatch
// and the caller must restart (spec.md §5 Ordering).
func (srv *Server) StreamingCallback(token StreamingToken) (StreamingCallbackResponse, error) {
	body, err := srv.store.GetChunk(token.Key, token.ContentEncoding, token.Index, &token.Sha256)
	if err != nil {
		return StreamingCallbackResponse{}, err
	}

	chunkWitness, ok := srv.store.ChunkWitness(token.Key, token.Index)
	if !ok {
		return StreamingCallbackResponse{}, fmt.Errorf("httpapi: %s: %w", token.Key, coreerr.ErrAssetNotInChunkTree)
	}
	wire, err := hashtree.Serialize(chunkWitness)
	if err != nil {
		return StreamingCallbackResponse{}, fmt.Errorf("httpapi: serialize chunk witness: %w", err)
	}

	_, chunks, err := srv.store.GetChunksInfo(token.Key, token.ContentEncoding)
	if err != nil {
		return StreamingCallbackResponse{}, err
	}

	resp := StreamingCallbackResponse{Body: rcbytes.New(body), ChunkTree: rcbytes.New(wire)}
	if token.Index+1 < len(chunks) {
		resp.Token = &StreamingToken{
			Key:             token.Key,
			ContentEncoding: token.ContentEncoding,
			Index:           token.Index + 1,
			Sha256:          token.Sha256,
		}
	}
	return resp, nil
}

func splitAcceptEncoding(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
