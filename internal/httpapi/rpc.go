package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"certassets.dev/internal/assetstore"
	"certassets.dev/internal/coreerr"
	"certassets.dev/internal/urlpath"
)

func readJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16*1024*1024))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coreerr.ErrNotAuthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, coreerr.ErrAssetNotFound),
		errors.Is(err, coreerr.ErrNoIdentityEncoding),
		errors.Is(err, coreerr.ErrNoSuchEncoding),
		errors.Is(err, coreerr.ErrBatchNotFound),
		errors.Is(err, coreerr.ErrAssetNotInChunkTree):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (srv *Server) caller(r *http.Request) (assetstore.Principal, error) {
	p, err := srv.host.Caller(r)
	return assetstore.Principal(p), err
}

// requireAuthorized is the guard every mutating endpoint calls before
// touching the store, mirroring original_source's per-call caller
// check (spec.md C9). It writes the response itself on failure; the
// caller should return immediately when ok is false.
func (srv *Server) requireAuthorized(w http.ResponseWriter, r *http.Request) (caller assetstore.Principal, ok bool) {
	caller, err := srv.caller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return "", false
	}
	if !srv.store.IsAuthorized(caller) {
		http.Error(w, coreerr.ErrNotAuthorized.Error(), http.StatusForbidden)
		return "", false
	}
	return caller, true
}

func (srv *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	if _, ok := srv.requireAuthorized(w, r); !ok {
		return
	}
	batchID := srv.store.CreateBatch()
	writeJSON(w, http.StatusOK, struct {
		BatchID uint64 `json:"batch_id"`
	}{batchID})
}

func (srv *Server) handleCreateChunk(w http.ResponseWriter, r *http.Request) {
	if _, ok := srv.requireAuthorized(w, r); !ok {
		return
	}
	var req struct {
		BatchID uint64 `json:"batch_id"`
		Content []byte `json:"content"`
	}
	if err := readJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	chunkID, err := srv.store.CreateChunk(assetstore.CreateChunkArgs{BatchID: req.BatchID, Content: req.Content})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ChunkID uint64 `json:"chunk_id"`
	}{chunkID})
}

// rpcOperation is the wire shape of a single CommitBatch step: Kind
// selects which payload field is read; "clear" has no payload.
type rpcOperation struct {
	Kind              string                           `json:"kind"`
	CreateAsset       *rpcCreateAsset                   `json:"create_asset,omitempty"`
	SetAssetContent   *assetstore.SetAssetContentArgs   `json:"set_asset_content,omitempty"`
	UnsetAssetContent *rpcUnsetAssetContent             `json:"unset_asset_content,omitempty"`
	DeleteAsset       *rpcDeleteAsset                   `json:"delete_asset,omitempty"`
}

type rpcCreateAsset struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
}

type rpcUnsetAssetContent struct {
	Key             string `json:"key"`
	ContentEncoding string `json:"content_encoding"`
}

type rpcDeleteAsset struct {
	Key string `json:"key"`
}

func toOperations(ops []rpcOperation) ([]assetstore.Operation, error) {
	out := make([]assetstore.Operation, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case "create_asset":
			if op.CreateAsset == nil {
				return nil, errors.New("httpapi: create_asset operation missing its payload")
			}
			out = append(out, assetstore.CreateAssetOp{Key: op.CreateAsset.Key, ContentType: op.CreateAsset.ContentType})
		case "set_asset_content":
			if op.SetAssetContent == nil {
				return nil, errors.New("httpapi: set_asset_content operation missing its payload")
			}
			out = append(out, assetstore.SetAssetContentOp{Args: *op.SetAssetContent})
		case "unset_asset_content":
			if op.UnsetAssetContent == nil {
				return nil, errors.New("httpapi: unset_asset_content operation missing its payload")
			}
			out = append(out, assetstore.UnsetAssetContentOp{Key: op.UnsetAssetContent.Key, Encoding: op.UnsetAssetContent.ContentEncoding})
		case "delete_asset":
			if op.DeleteAsset == nil {
				return nil, errors.New("httpapi: delete_asset operation missing its payload")
			}
			out = append(out, assetstore.DeleteAssetOp{Key: op.DeleteAsset.Key})
		case "clear":
			out = append(out, assetstore.ClearOp{})
		default:
			return nil, errors.New("httpapi: unknown operation kind " + op.Kind)
		}
	}
	return out, nil
}

func (srv *Server) handleCommitBatch(w http.ResponseWriter, r *http.Request) {
	if _, ok := srv.requireAuthorized(w, r); !ok {
		return
	}
	var req struct {
		BatchID    uint64         `json:"batch_id"`
		Operations []rpcOperation `json:"operations"`
	}
	if err := readJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ops, err := toOperations(req.Operations)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := srv.store.CommitBatch(req.BatchID, ops); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	if _, ok := srv.requireAuthorized(w, r); !ok {
		return
	}
	var args assetstore.StoreArgs
	if err := readJSON(r, &args); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := srv.store.Store(args); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	if _, ok := srv.requireAuthorized(w, r); !ok {
		return
	}
	var req rpcCreateAsset
	if err := readJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := srv.store.CreateAsset(req.Key, req.ContentType); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) handleSetAssetContent(w http.ResponseWriter, r *http.Request) {
	if _, ok := srv.requireAuthorized(w, r); !ok {
		return
	}
	var args assetstore.SetAssetContentArgs
	if err := readJSON(r, &args); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := srv.store.SetAssetContent(args); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) handleUnsetAssetContent(w http.ResponseWriter, r *http.Request) {
	if _, ok := srv.requireAuthorized(w, r); !ok {
		return
	}
	var req rpcUnsetAssetContent
	if err := readJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := srv.store.UnsetAssetContent(req.Key, req.ContentEncoding); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) handleDeleteContent(w http.ResponseWriter, r *http.Request) {
	if _, ok := srv.requireAuthorized(w, r); !ok {
		return
	}
	var req rpcDeleteAsset
	if err := readJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := srv.store.DeleteAsset(req.Key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if _, ok := srv.requireAuthorized(w, r); !ok {
		return
	}
	if err := srv.store.Clear(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	body, err := srv.store.Retrieve(key)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (srv *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key             string   `json:"key"`
		AcceptEncodings []string `json:"accept_encodings"`
	}
	if err := readJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	asset, err := srv.store.Get(req.Key, req.AcceptEncodings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (srv *Server) handleGetChunksInfo(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	encoding := r.URL.Query().Get("content_encoding")
	total, chunks, err := srv.store.GetChunksInfo(key, encoding)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		TotalLength uint64                   `json:"total_length"`
		Chunks      []assetstore.ChunkInfo   `json:"chunks"`
	}{total, chunks})
}

func (srv *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key             string  `json:"key"`
		ContentEncoding string  `json:"content_encoding"`
		Index           int     `json:"index"`
		Sha256          *[32]byte `json:"sha256"`
	}
	if err := readJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body, err := srv.store.GetChunk(req.Key, req.ContentEncoding, req.Index, req.Sha256)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Content []byte `json:"content"`
	}{body})
}

func (srv *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, srv.store.List())
}

func (srv *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	caller, err := srv.caller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req struct {
		Principal string `json:"principal"`
	}
	if err := readJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := srv.store.Authorize(caller, assetstore.Principal(req.Principal)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) handleStreamingCallback(w http.ResponseWriter, r *http.Request) {
	var token StreamingToken
	if err := readJSON(r, &token); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := srv.StreamingCallback(token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (srv *Server) handleAssetRequest(w http.ResponseWriter, r *http.Request) {
	var rng *urlpath.Range
	if parsed, ok := urlpath.First(r.Header.Get("Range")); ok {
		rng = &parsed
	}
	resp := srv.Resolve(r.URL.RequestURI(), splitAcceptEncoding(r.Header.Get("Accept-Encoding")), rng)
	for _, h := range resp.Headers {
		w.Header().Add(h.Name, h.Value)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body.Bytes())
}
