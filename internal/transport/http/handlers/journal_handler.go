package handlers

import (
	"errors"
	"net/http"
	"strconv"

	pgrepo "github.com/knowmetools/km-api-sub001/internal/repo/postgres"
	journalsvc "github.com/knowmetools/km-api-sub001/internal/services/journal"
	"github.com/knowmetools/km-api-sub001/internal/transport/http/dto"
	httperrors "github.com/knowmetools/km-api-sub001/internal/transport/http/errors"
)

type JournalHandler struct {
	service *journalsvc.Service
}

func NewJournalHandler(service *journalsvc.Service) *JournalHandler {
	return &JournalHandler{service: service}
}

func (h *JournalHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "JOURNAL_SERVICE_UNAVAILABLE", "journal service is unavailable")
		return
	}
	profileID, ok := pathID(w, r, "profileID")
	if !ok {
		return
	}

	var req dto.CreateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	entry, err := h.service.CreateEntry(r.Context(), identity.UserID, profileID, req.Text, req.Emoji)
	if err != nil {
		handleJournalError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, entryResponse(entry))
}

func (h *JournalHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "JOURNAL_SERVICE_UNAVAILABLE", "journal service is unavailable")
		return
	}
	profileID, ok := pathID(w, r, "profileID")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.ListEntries(r.Context(), identity.UserID, profileID, limit)
	if err != nil {
		handleJournalError(w, err)
		return
	}

	res := dto.EntryListResponse{Entries: make([]dto.EntryResponse, 0, len(entries))}
	for _, entry := range entries {
		res.Entries = append(res.Entries, entryResponse(entry))
	}
	httperrors.Write(w, http.StatusOK, res)
}

func (h *JournalHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "JOURNAL_SERVICE_UNAVAILABLE", "journal service is unavailable")
		return
	}
	entryID, ok := pathID(w, r, "entryID")
	if !ok {
		return
	}

	entry, err := h.service.GetEntry(r.Context(), identity.UserID, entryID)
	if err != nil {
		handleJournalError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, entryResponse(entry))
}

func handleJournalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, journalsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
	case errors.Is(err, journalsvc.ErrNotFound):
		writeNotFound(w, "NOT_FOUND", "resource not found")
	case errors.Is(err, journalsvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "write access not granted")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func entryResponse(entry pgrepo.EntryRecord) dto.EntryResponse {
	return dto.EntryResponse{
		ID:        entry.ID,
		ProfileID: entry.ProfileID,
		Text:      entry.Text,
		Emoji:     entry.Emoji,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}
}
