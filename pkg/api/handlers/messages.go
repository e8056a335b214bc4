package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"chatdb/pkg/auth"
	"chatdb/pkg/logger"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
	"chatdb/pkg/utils"
)

var validate = validator.New()

// RegisterMessages registers HTTP handlers for message endpoints.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/messages", createMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages", listMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/receipts", getReceipts).Methods(http.MethodGet)
}

type appendRequest struct {
	Text         string `json:"text" validate:"max=1000"`
	ImageURL     string `json:"image_url" validate:"omitempty,uri"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,uri"`
}

// storeError maps the store taxonomy onto HTTP statuses.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUnauthenticated):
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, store.ErrValidation):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrTransient), errors.Is(err, store.ErrClosed):
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func createMessage(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id.UserID == "" {
		utils.JSONError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := store.Append(models.Message{
		Text:         req.Text,
		SenderID:     id.UserID,
		SenderEmail:  id.Email,
		ImageURL:     req.ImageURL,
		ThumbnailURL: req.ThumbnailURL,
	})
	if err != nil {
		storeError(w, err)
		return
	}
	logger.Info("message_created", "id", m.ID, "type", string(m.Type))
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

func listMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim > 0 {
			limit = lim
		}
	}
	msgs, err := store.ListRecent(limit)
	if err != nil {
		storeError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Messages []models.Message `json:"messages"`
	}{Messages: msgs})
}

func getMessage(w http.ResponseWriter, r *http.Request) {
	m, err := store.Get(mux.Vars(r)["id"])
	if err != nil {
		storeError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func getReceipts(w http.ResponseWriter, r *http.Request) {
	viewer := auth.IdentityFromContext(r.Context()).UserID
	m, err := store.Get(mux.Vars(r)["id"])
	if err != nil {
		storeError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		ID              string           `json:"id"`
		ReadBy          map[string]int64 `json:"read_by"`
		OthersReadCount int              `json:"others_read_count"`
		ReadByOthers    bool             `json:"read_by_others"`
	}{
		ID:              m.ID,
		ReadBy:          m.ReadBy,
		OthersReadCount: m.OthersReadCount(viewer),
		ReadByOthers:    m.ReadByOthers(viewer),
	})
}
