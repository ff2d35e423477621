package handlers

import (
	"errors"
	"net/http"

	mediasvc "github.com/knowmetools/km-api-sub001/internal/services/media"
	"github.com/knowmetools/km-api-sub001/internal/transport/http/dto"
	httperrors "github.com/knowmetools/km-api-sub001/internal/transport/http/errors"
)

const maxMediaUploadSize = 25 << 20 // 25 MiB

type MediaHandler struct {
	service *mediasvc.Service
}

func NewMediaHandler(service *mediasvc.Service) *MediaHandler {
	return &MediaHandler{service: service}
}

func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}
	profileID, ok := pathID(w, r, "profileID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMediaUploadSize)
	if err := r.ParseMultipartForm(maxMediaUploadSize); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "file is required")
		return
	}
	defer file.Close()

	if header == nil || header.Size <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "file is empty")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	media, err := h.service.Upload(r.Context(), identity.UserID, profileID, header.Filename, contentType, file, header.Size)
	if err != nil {
		handleMediaError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, mediaResponse(media))
}

func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}
	profileID, ok := pathID(w, r, "profileID")
	if !ok {
		return
	}

	media, err := h.service.List(r.Context(), identity.UserID, profileID)
	if err != nil {
		handleMediaError(w, err)
		return
	}

	res := dto.MediaListResponse{Media: make([]dto.MediaResponse, 0, len(media))}
	for _, item := range media {
		res.Media = append(res.Media, mediaResponse(item))
	}
	httperrors.Write(w, http.StatusOK, res)
}

func handleMediaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mediasvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid media request")
	case errors.Is(err, mediasvc.ErrNotFound):
		writeNotFound(w, "NOT_FOUND", "resource not found")
	case errors.Is(err, mediasvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "write access not granted")
	default:
		writeInternal(w, "INTERNAL_ERROR", "media operation failed")
	}
}

func mediaResponse(media mediasvc.Media) dto.MediaResponse {
	return dto.MediaResponse{
		ID:          media.ID,
		ProfileID:   media.ProfileID,
		ContentType: media.ContentType,
		URL:         media.URL,
		CreatedAt:   media.CreatedAt,
	}
}
