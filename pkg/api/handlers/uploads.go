package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"

	"chatdb/pkg/auth"
	"chatdb/pkg/logger"
	"chatdb/pkg/uploads"
	"chatdb/pkg/utils"
)

const defaultMaxUploadBytes = 8 << 20

// RegisterUploads registers the image upload endpoint and the blob server
// handing derivatives back out.
func RegisterUploads(r *mux.Router, up *uploads.Coordinator, blobDir string, maxBytes int64) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	r.HandleFunc("/uploads", func(w http.ResponseWriter, rq *http.Request) {
		uploadImage(w, rq, up, maxBytes)
	}).Methods(http.MethodPost)
	r.HandleFunc("/blobs/{name}", func(w http.ResponseWriter, rq *http.Request) {
		serveBlob(w, rq, blobDir)
	}).Methods(http.MethodGet)
}

func uploadImage(w http.ResponseWriter, r *http.Request, up *uploads.Coordinator, maxBytes int64) {
	id := auth.IdentityFromContext(r.Context())
	if id.UserID == "" {
		utils.JSONError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	var src []byte
	var err error
	if file, _, ferr := r.FormFile("image"); ferr == nil {
		src, err = io.ReadAll(file)
		file.Close()
	} else {
		src, err = io.ReadAll(r.Body)
	}
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "failed to read image: "+err.Error())
		return
	}
	if len(src) == 0 {
		utils.JSONError(w, http.StatusBadRequest, "empty image")
		return
	}

	res, err := up.Upload(r.Context(), src, func(p float64) {
		logger.Debug("upload_progress", "user", id.UserID, "progress", p)
	})
	if err != nil {
		if errors.Is(err, uploads.ErrUploadFailure) {
			utils.JSONError(w, http.StatusBadGateway, err.Error())
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, res)
}

func serveBlob(w http.ResponseWriter, r *http.Request, blobDir string) {
	name := mux.Vars(r)["name"]
	if name == "" || name != filepath.Base(name) {
		utils.JSONError(w, http.StatusBadRequest, "invalid blob name")
		return
	}
	http.ServeFile(w, r, filepath.Join(blobDir, name))
}
