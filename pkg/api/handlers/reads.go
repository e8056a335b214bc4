package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"chatdb/pkg/auth"
	"chatdb/pkg/ingest"
	"chatdb/pkg/logger"
	"chatdb/pkg/receipts"
	"chatdb/pkg/utils"
)

// RegisterReads registers the mark-read endpoint. With explicit message ids
// the call is synchronous and surfaces errors; with a trigger name it is the
// best-effort funnel behind the two passive trigger points and always
// acknowledges.
func RegisterReads(r *mux.Router, q *ingest.Queue) {
	r.HandleFunc("/reads", func(w http.ResponseWriter, rq *http.Request) {
		markRead(w, rq, q)
	}).Methods(http.MethodPost)
}

type readRequest struct {
	MessageIDs []string `json:"message_ids"`
	Trigger    string   `json:"trigger" validate:"omitempty,oneof=snapshot foreground"`
}

func markRead(w http.ResponseWriter, r *http.Request, q *ingest.Queue) {
	id := auth.IdentityFromContext(r.Context())
	if id.UserID == "" {
		utils.JSONError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var req readRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Trigger != "" {
		// passive lifecycle trigger: enqueue and drop on overload; the
		// next trigger retries naturally
		if err := q.TryEnqueue(id.UserID, req.MessageIDs, ingest.Trigger(req.Trigger)); err != nil {
			if !errors.Is(err, ingest.ErrQueueFull) {
				logger.Warn("read_trigger_enqueue_failed", "user", id.UserID, "error", err)
			}
		}
		_ = utils.JSONWrite(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	if len(req.MessageIDs) == 0 {
		utils.JSONError(w, http.StatusBadRequest, "message_ids or trigger required")
		return
	}
	if err := receipts.MarkReadIDs(r.Context(), id.UserID, req.MessageIDs); err != nil {
		storeError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}
