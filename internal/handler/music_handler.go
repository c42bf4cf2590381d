package handler

import (
	"encoding/json"
	"net/http"

	"musicfiles/internal/middleware"
	"musicfiles/internal/model"
	"musicfiles/internal/service"
	"musicfiles/pkg/apierror"
)

type MusicHandler struct {
	uploads *service.FileUploadService
	data    *service.MusicDataService
}

func NewMusicHandler(uploads *service.FileUploadService, data *service.MusicDataService) *MusicHandler {
	return &MusicHandler{uploads: uploads, data: data}
}

// RequestMediaUpload hands the caller a presigned PUT URL scoped to their
// own prefix in the bucket.
func (h *MusicHandler) RequestMediaUpload(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrTokenInvalid)
		return
	}

	var payload model.PresignedURLRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body"))
		return
	}

	presigned, err := h.uploads.GenerateUploadURL(r.Context(), claims.Subject, payload.FileName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, presigned)
}

// CompleteMediaUpload records metadata after the client finished uploading
// directly against the presigned URL.
func (h *MusicHandler) CompleteMediaUpload(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrTokenInvalid)
		return
	}

	var payload model.CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body"))
		return
	}

	file, err := h.data.CompleteUpload(r.Context(), claims.Subject, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, musicFileResponse(file))
}

func (h *MusicHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrTokenInvalid)
		return
	}

	files, err := h.data.ListByUser(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]model.MusicFileResponse, 0, len(files))
	for _, file := range files {
		out = append(out, musicFileResponse(file))
	}

	writeJSON(w, http.StatusOK, model.MusicFileListResponse{Files: out})
}

func musicFileResponse(file model.MusicFile) model.MusicFileResponse {
	return model.MusicFileResponse{
		ID:           file.ID,
		UserPublicID: file.UserPublicID,
		FileName:     file.FileName,
		Category:     file.Category,
		MediaType:    string(file.MediaType),
		LastModified: file.LastModified,
	}
}
