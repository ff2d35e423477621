package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	pgrepo "github.com/knowmetools/km-api-sub001/internal/repo/postgres"
	appstoresvc "github.com/knowmetools/km-api-sub001/internal/services/appstore"
	authsvc "github.com/knowmetools/km-api-sub001/internal/services/auth"
	"github.com/knowmetools/km-api-sub001/internal/transport/http/dto"
	httperrors "github.com/knowmetools/km-api-sub001/internal/transport/http/errors"
)

// ReceiptHandler exposes the receipt pipeline: subscription transfer,
// environment classification and lookup by hash. Receipt payloads are never
// logged; failures are tagged with the receipt hash only.
type ReceiptHandler struct {
	service *appstoresvc.Service
	logger  *zap.Logger
}

func NewReceiptHandler(service *appstoresvc.Service, logger *zap.Logger) *ReceiptHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptHandler{
		service: service,
		logger:  logger,
	}
}

// Transfer verifies a receipt for the authenticated user and attaches the
// subscription to them, taking it over from any previous submitter.
func (h *ReceiptHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "RECEIPT_SERVICE_UNAVAILABLE", "receipt service is unavailable")
		return
	}

	var req dto.SubscriptionTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.service.SubmitReceipt(r.Context(), identity.UserID, []byte(req.ReceiptData))
	if err != nil {
		h.logger.Warn("receipt submission failed",
			zap.Int64("user_id", identity.UserID),
			zap.String("receipt_data_hash", appstoresvc.HashReceiptData([]byte(req.ReceiptData))),
			zap.Error(err))
		h.writeReceiptError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SubscriptionTransferResponse{
		IsActive: result.IsActive,
		AppleReceipt: dto.AppleReceipt{
			ReceiptDataHash: result.ReceiptDataHash,
			ExpirationTime:  result.ExpirationTime,
			Environment:     string(result.Environment),
		},
	})
}

// ClassifyType reports which Apple environment produced the receipt without
// storing anything.
func (h *ReceiptHandler) ClassifyType(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "RECEIPT_SERVICE_UNAVAILABLE", "receipt service is unavailable")
		return
	}

	var req dto.ReceiptTypeQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	env, err := h.service.ClassifyReceipt(r.Context(), []byte(req.ReceiptData))
	if err != nil {
		h.writeReceiptError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ReceiptTypeQueryResponse{
		Environment: string(env),
	})
}

// LookupByHash answers whether a receipt with the given hash is stored.
func (h *ReceiptHandler) LookupByHash(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "RECEIPT_SERVICE_UNAVAILABLE", "receipt service is unavailable")
		return
	}

	hash := chi.URLParam(r, "receiptHash")
	exists, err := h.service.ReceiptExists(r.Context(), hash)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to look up receipt")
		return
	}
	if !exists {
		writeNotFound(w, "RECEIPT_NOT_FOUND", "receipt not found")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *ReceiptHandler) writeReceiptError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appstoresvc.ErrValidation), errors.Is(err, appstoresvc.ErrInvalidReceipt):
		writeBadRequest(w, "INVALID_RECEIPT", "receipt was rejected")
	case errors.Is(err, appstoresvc.ErrTransport):
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code:    "VERIFICATION_UNAVAILABLE",
			Message: "receipt verification failed upstream",
		})
	case errors.Is(err, appstoresvc.ErrRetryable):
		httperrors.Write(w, http.StatusGatewayTimeout, httperrors.APIError{
			Code:    "VERIFICATION_RETRY",
			Message: "receipt verification is temporarily unavailable, retry later",
		})
	case errors.Is(err, pgrepo.ErrTransactionIDTaken):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "RECEIPT_CONFLICT",
			Message: "receipt was submitted concurrently, retry",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to process receipt")
	}
}
