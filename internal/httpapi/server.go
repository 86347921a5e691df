package httpapi

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"certassets.dev/internal/assetstore"
	"certassets.dev/internal/host"
)

// maxManagementBodyBytes bounds every JSON management request body;
// asset uploads go through create_chunk, and assetstore sets no chunk
// size limit of its own, so this cap is also the largest chunk (as a
// base64 payload plus JSON overhead) one create_chunk call accepts.
const maxManagementBodyBytes = 4 * 1024 * 1024

// Server wires internal/assetstore's Store to net/http: it owns the
// routes and the listener.
type Server struct {
	store *assetstore.Store
	host  host.Host

	listenAddress string
}

// New returns a Server bound to store and h, serving on listenAddress.
func New(store *assetstore.Store, h host.Host, listenAddress string) *Server {
	return &Server{store: store, host: h, listenAddress: listenAddress}
}

func traced(name string, h http.HandlerFunc) http.Handler {
	return otelhttp.NewHandler(h, name)
}

func (srv *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST /api/create_batch", traced("create-batch", srv.handleCreateBatch))
	mux.Handle("POST /api/create_chunk", traced("create-chunk", srv.handleCreateChunk))
	mux.Handle("POST /api/commit_batch", traced("commit-batch", srv.handleCommitBatch))

	mux.Handle("POST /api/store", traced("store", srv.handleStore))
	mux.Handle("POST /api/create_asset", traced("create-asset", srv.handleCreateAsset))
	mux.Handle("POST /api/set_asset_content", traced("set-asset-content", srv.handleSetAssetContent))
	mux.Handle("POST /api/unset_asset_content", traced("unset-asset-content", srv.handleUnsetAssetContent))
	mux.Handle("POST /api/delete_content", traced("delete-content", srv.handleDeleteContent))
	mux.Handle("POST /api/clear", traced("clear", srv.handleClear))

	mux.Handle("GET /api/retrieve", traced("retrieve", srv.handleRetrieve))
	mux.Handle("POST /api/get", traced("get", srv.handleGet))
	mux.Handle("GET /api/get_chunks_info", traced("get-chunks-info", srv.handleGetChunksInfo))
	mux.Handle("POST /api/get_chunk", traced("get-chunk", srv.handleGetChunk))
	mux.Handle("GET /api/list", traced("list", srv.handleList))

	mux.Handle("POST /api/authorize", traced("authorize", srv.handleAuthorize))

	mux.Handle("POST /api/streaming-callback", traced("streaming-callback", srv.handleStreamingCallback))

	// Everything else is the certified asset resolver (C8), matching
	// original_source's http_request entry point.
	mux.Handle("/", traced("http-request", srv.handleAssetRequest))

	return mux
}

// Handler returns the fully wired HTTP handler: every JSON management
// route plus the certified asset resolver, size-capped the same way
// Start's listener is. Exported so a process embedding this package
// (or a black-box test) can drive it over httptest without opening a
// socket.
func (srv *Server) Handler() http.Handler {
	return http.MaxBytesHandler(srv.mux(), maxManagementBodyBytes)
}

// Start blocks serving HTTP on srv.listenAddress until the listener
// fails, mirroring ctlog.go's Start(ctx) shape.
func (srv *Server) Start() error {
	return http.ListenAndServe(srv.listenAddress, srv.Handler())
}
