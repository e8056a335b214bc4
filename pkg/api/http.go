package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatdb/pkg/api/handlers"
	"chatdb/pkg/feed"
	"chatdb/pkg/ingest"
	"chatdb/pkg/uploads"
)

// Deps carries the wired components the handlers need.
type Deps struct {
	Feed     *feed.Feed
	Queue    *ingest.Queue
	Uploader *uploads.Coordinator
	BlobDir  string
	// MaxUploadBytes caps the accepted upload body size; zero means the
	// built-in default.
	MaxUploadBytes int64
}

// Handler returns the /v1 API router. Identity and gateway middleware are
// applied by the caller (internal/app) so health endpoints stay open.
func Handler(d Deps) http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterMessages(v1)
	handlers.RegisterReads(v1, d.Queue)
	handlers.RegisterFeed(v1, d.Feed, d.Queue)
	handlers.RegisterUploads(v1, d.Uploader, d.BlobDir, d.MaxUploadBytes)
	return r
}
