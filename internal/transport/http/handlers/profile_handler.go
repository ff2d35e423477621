package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	pgrepo "github.com/knowmetools/km-api-sub001/internal/repo/postgres"
	authsvc "github.com/knowmetools/km-api-sub001/internal/services/auth"
	profilesvc "github.com/knowmetools/km-api-sub001/internal/services/profiles"
	"github.com/knowmetools/km-api-sub001/internal/transport/http/dto"
	httperrors "github.com/knowmetools/km-api-sub001/internal/transport/http/errors"
)

type ProfileHandler struct {
	service *profilesvc.Service
}

func NewProfileHandler(service *profilesvc.Service) *ProfileHandler {
	return &ProfileHandler{service: service}
}

func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}

	var req dto.CreateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	profile, err := h.service.CreateProfile(r.Context(), identity.UserID, req.Name)
	if err != nil {
		if errors.Is(err, profilesvc.ErrAlreadyExists) {
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "PROFILE_EXISTS",
				Message: "profile already exists",
			})
			return
		}
		handleProfileError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, profileResponse(profile))
}

func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}

	profile, err := h.service.GetOwnProfile(r.Context(), identity.UserID)
	if err != nil {
		handleProfileError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, profileResponse(profile))
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	profileID, ok := pathID(w, r, "profileID")
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), identity.UserID, profileID)
	if err != nil {
		handleProfileError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, profileResponse(profile))
}

func (h *ProfileHandler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	profileID, ok := pathID(w, r, "profileID")
	if !ok {
		return
	}

	var req dto.CreateTopicRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	topic, err := h.service.CreateTopic(r.Context(), identity.UserID, profileID, req.Name, req.TopicType)
	if err != nil {
		handleProfileError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, topicResponse(topic))
}

func (h *ProfileHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	profileID, ok := pathID(w, r, "profileID")
	if !ok {
		return
	}

	topics, err := h.service.ListTopics(r.Context(), identity.UserID, profileID)
	if err != nil {
		handleProfileError(w, err)
		return
	}

	res := dto.TopicListResponse{Topics: make([]dto.TopicResponse, 0, len(topics))}
	for _, topic := range topics {
		res.Topics = append(res.Topics, topicResponse(topic))
	}
	httperrors.Write(w, http.StatusOK, res)
}

func (h *ProfileHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	topicID, ok := pathID(w, r, "topicID")
	if !ok {
		return
	}

	var req dto.CreateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	item, err := h.service.CreateItem(r.Context(), identity.UserID, topicID, req.Name, req.Description)
	if err != nil {
		handleProfileError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, itemResponse(item))
}

func (h *ProfileHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	topicID, ok := pathID(w, r, "topicID")
	if !ok {
		return
	}

	items, err := h.service.ListItems(r.Context(), identity.UserID, topicID)
	if err != nil {
		handleProfileError(w, err)
		return
	}

	res := dto.ItemListResponse{Items: make([]dto.ItemResponse, 0, len(items))}
	for _, item := range items {
		res.Items = append(res.Items, itemResponse(item))
	}
	httperrors.Write(w, http.StatusOK, res)
}

func (h *ProfileHandler) GrantAccessor(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	profileID, ok := pathID(w, r, "profileID")
	if !ok {
		return
	}

	var req dto.GrantAccessorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	accessor, err := h.service.GrantAccessor(r.Context(), identity.UserID, profileID, req.UserID, req.CanWrite)
	if err != nil {
		if errors.Is(err, profilesvc.ErrAlreadyExists) {
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "ACCESSOR_EXISTS",
				Message: "accessor already granted",
			})
			return
		}
		handleProfileError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, accessorResponse(accessor))
}

func (h *ProfileHandler) AcceptAccessor(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	accessorID, ok := pathID(w, r, "accessorID")
	if !ok {
		return
	}

	accessor, err := h.service.AcceptAccessor(r.Context(), identity.UserID, accessorID)
	if err != nil {
		handleProfileError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, accessorResponse(accessor))
}

func (h *ProfileHandler) ListAccessors(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	profileID, ok := pathID(w, r, "profileID")
	if !ok {
		return
	}

	accessors, err := h.service.ListAccessors(r.Context(), identity.UserID, profileID)
	if err != nil {
		handleProfileError(w, err)
		return
	}

	res := dto.AccessorListResponse{Accessors: make([]dto.AccessorResponse, 0, len(accessors))}
	for _, accessor := range accessors {
		res.Accessors = append(res.Accessors, accessorResponse(accessor))
	}
	httperrors.Write(w, http.StatusOK, res)
}

func handleProfileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profilesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
	case errors.Is(err, profilesvc.ErrNotFound):
		writeNotFound(w, "NOT_FOUND", "resource not found")
	case errors.Is(err, profilesvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "write access not granted")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (authsvc.Identity, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return authsvc.Identity{}, false
	}
	return identity, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid path parameter")
		return 0, false
	}
	return id, true
}

func profileResponse(profile pgrepo.ProfileRecord) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:        profile.ID,
		UserID:    profile.UserID,
		Name:      profile.Name,
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	}
}

func topicResponse(topic pgrepo.TopicRecord) dto.TopicResponse {
	return dto.TopicResponse{
		ID:        topic.ID,
		ProfileID: topic.ProfileID,
		Name:      topic.Name,
		TopicType: topic.TopicType,
		CreatedAt: topic.CreatedAt,
		UpdatedAt: topic.UpdatedAt,
	}
}

func itemResponse(item pgrepo.ItemRecord) dto.ItemResponse {
	return dto.ItemResponse{
		ID:          item.ID,
		TopicID:     item.TopicID,
		Name:        item.Name,
		Description: item.Description,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func accessorResponse(accessor pgrepo.AccessorRecord) dto.AccessorResponse {
	return dto.AccessorResponse{
		ID:         accessor.ID,
		ProfileID:  accessor.ProfileID,
		UserID:     accessor.UserID,
		CanWrite:   accessor.CanWrite,
		IsAccepted: accessor.IsAccepted,
		CreatedAt:  accessor.CreatedAt,
	}
}
