package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"chatdb/pkg/auth"
	"chatdb/pkg/feed"
	"chatdb/pkg/ingest"
	"chatdb/pkg/logger"
	"chatdb/pkg/utils"
)

// RegisterFeed registers the SSE snapshot stream. Every snapshot delivered
// to an authenticated subscriber also enqueues the "snapshot" read-mark
// trigger, so viewing the feed marks its window read without blocking the
// delivery path.
func RegisterFeed(r *mux.Router, f *feed.Feed, q *ingest.Queue) {
	r.HandleFunc("/feed", func(w http.ResponseWriter, rq *http.Request) {
		streamFeed(w, rq, f, q)
	}).Methods(http.MethodGet)
}

func streamFeed(w http.ResponseWriter, r *http.Request, f *feed.Feed, q *ingest.Queue) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.JSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	userID := auth.IdentityFromContext(r.Context()).UserID

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := f.Subscribe(r.Context(), userID)
	defer sub.Cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-sub.Snapshots():
			if !open {
				return
			}
			b, err := json.Marshal(snap)
			if err != nil {
				logger.Error("feed_snapshot_marshal_failed", "error", err)
				continue
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(b); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()

			if userID != "" && len(snap.Messages) > 0 {
				// fire-and-forget; a full queue just means the next
				// snapshot retries
				_ = q.TryEnqueue(userID, nil, ingest.TriggerSnapshot)
			}
		}
	}
}
