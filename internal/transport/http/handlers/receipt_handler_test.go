package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	pgrepo "github.com/knowmetools/km-api-sub001/internal/repo/postgres"
	appstoresvc "github.com/knowmetools/km-api-sub001/internal/services/appstore"
	authsvc "github.com/knowmetools/km-api-sub001/internal/services/auth"
	"github.com/knowmetools/km-api-sub001/internal/transport/http/dto"
)

type receiptStoreStub struct {
	records map[string]pgrepo.ReceiptRecord
	nextID  int64
	upserts int
}

func (s *receiptStoreStub) UpsertByTransactionID(_ context.Context, userID int64, upsert pgrepo.ReceiptUpsert) (pgrepo.ReceiptRecord, error) {
	s.upserts++
	if s.records == nil {
		s.records = make(map[string]pgrepo.ReceiptRecord)
	}
	record, ok := s.records[upsert.TransactionID]
	if !ok {
		s.nextID++
		record = pgrepo.ReceiptRecord{ID: s.nextID, TransactionID: upsert.TransactionID, ExpirationTime: upsert.ExpirationTime}
	}
	record.UserID = userID
	record.ReceiptData = upsert.ReceiptData
	record.ReceiptDataHash = upsert.ReceiptDataHash
	record.Environment = upsert.Environment
	if upsert.ExpirationTime.After(record.ExpirationTime) {
		record.ExpirationTime = upsert.ExpirationTime
	}
	s.records[upsert.TransactionID] = record
	return record, nil
}

func (s *receiptStoreStub) FindByHash(_ context.Context, hash string) (pgrepo.ReceiptRecord, error) {
	for _, record := range s.records {
		if record.ReceiptDataHash == hash {
			return record, nil
		}
	}
	return pgrepo.ReceiptRecord{}, pgrepo.ErrReceiptNotFound
}

func fakeApple(t *testing.T, status int, environment string, expiresMS string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := map[string]any{"status": status}
		if status == 0 {
			body["environment"] = environment
			body["latest_receipt_info"] = []map[string]any{
				{"original_transaction_id": "orig-1", "expires_date_ms": expiresMS},
			}
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func newReceiptService(appleURL string, store *receiptStoreStub) *appstoresvc.Service {
	verifier := appstoresvc.NewVerifier(appstoresvc.VerifierConfig{
		ProductionURL:  appleURL,
		SandboxURL:     appleURL,
		SharedSecret:   "test-secret",
		AttemptTimeout: 2 * time.Second,
		VerifyBudget:   5 * time.Second,
	})
	return appstoresvc.NewService(verifier, store)
}

func withIdentity(req *http.Request, userID int64) *http.Request {
	return req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{
		UserID: userID,
		SID:    "sid-test",
	}))
}

func TestReceiptTypeQueryClassifiesWithoutStoring(t *testing.T) {
	futureMS := time.Now().Add(24 * time.Hour).UnixMilli()
	apple := fakeApple(t, 0, "Production", jsonMS(futureMS))
	defer apple.Close()

	store := &receiptStoreStub{}
	handler := NewReceiptHandler(newReceiptService(apple.URL, store), nil)

	req := httptest.NewRequest(http.MethodPost, "/apple/receipt-type-query/", strings.NewReader(`{"receipt_data":"abc"}`))
	rr := httptest.NewRecorder()
	handler.ClassifyType(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rr.Code, rr.Body.String())
	}

	var payload dto.ReceiptTypeQueryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Environment != "PRODUCTION" {
		t.Fatalf("unexpected environment: %s", payload.Environment)
	}
	if store.upserts != 0 {
		t.Fatalf("classification must not persist anything, got %d upserts", store.upserts)
	}
}

func TestSubscriptionTransferAttachesReceipt(t *testing.T) {
	futureMS := time.Now().Add(24 * time.Hour).UnixMilli()
	apple := fakeApple(t, 0, "Production", jsonMS(futureMS))
	defer apple.Close()

	store := &receiptStoreStub{}
	handler := NewReceiptHandler(newReceiptService(apple.URL, store), nil)

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/know-me/subscriptions/transfer/", strings.NewReader(`{"receipt_data":"abc"}`)), 101)
	rr := httptest.NewRecorder()
	handler.Transfer(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rr.Code, rr.Body.String())
	}

	var payload dto.SubscriptionTransferResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.IsActive {
		t.Fatalf("receipt expiring tomorrow must be active")
	}
	if payload.AppleReceipt.ReceiptDataHash != appstoresvc.HashReceiptData([]byte("abc")) {
		t.Fatalf("unexpected receipt hash: %s", payload.AppleReceipt.ReceiptDataHash)
	}
	if got := store.records["orig-1"].UserID; got != 101 {
		t.Fatalf("receipt not attached to the submitter: got user %d", got)
	}
}

func TestSubscriptionTransferRequiresAuth(t *testing.T) {
	handler := NewReceiptHandler(newReceiptService("http://apple.invalid", &receiptStoreStub{}), nil)

	req := httptest.NewRequest(http.MethodPost, "/know-me/subscriptions/transfer/", strings.NewReader(`{"receipt_data":"abc"}`))
	rr := httptest.NewRecorder()
	handler.Transfer(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d", rr.Code)
	}
}

func TestSubscriptionTransferRejectedReceipt(t *testing.T) {
	apple := fakeApple(t, 21003, "", "")
	defer apple.Close()

	handler := NewReceiptHandler(newReceiptService(apple.URL, &receiptStoreStub{}), nil)

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/know-me/subscriptions/transfer/", strings.NewReader(`{"receipt_data":"abc"}`)), 101)
	rr := httptest.NewRecorder()
	handler.Transfer(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("rejected receipt must map to 400, got %d", rr.Code)
	}
}

func TestSubscriptionTransferUpstreamFailure(t *testing.T) {
	apple := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer apple.Close()

	handler := NewReceiptHandler(newReceiptService(apple.URL, &receiptStoreStub{}), nil)

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/know-me/subscriptions/transfer/", strings.NewReader(`{"receipt_data":"abc"}`)), 101)
	rr := httptest.NewRecorder()
	handler.Transfer(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("upstream failure must map to 502, got %d", rr.Code)
	}
}

func TestReceiptLookupByHash(t *testing.T) {
	futureMS := time.Now().Add(24 * time.Hour).UnixMilli()
	apple := fakeApple(t, 0, "Production", jsonMS(futureMS))
	defer apple.Close()

	store := &receiptStoreStub{}
	service := newReceiptService(apple.URL, store)
	if _, err := service.SubmitReceipt(context.Background(), 101, []byte("abc")); err != nil {
		t.Fatalf("seed receipt: %v", err)
	}

	handler := NewReceiptHandler(service, nil)
	router := chi.NewRouter()
	router.Get("/know-me/apple-receipts/{receiptHash}/", handler.LookupByHash)

	hash := appstoresvc.HashReceiptData([]byte("abc"))
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/know-me/apple-receipts/"+hash+"/", nil), 101)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("stored hash must answer 200, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("lookup must answer with an empty body, got %q", rr.Body.String())
	}

	missing := appstoresvc.HashReceiptData([]byte("never-stored"))
	req = withIdentity(httptest.NewRequest(http.MethodGet, "/know-me/apple-receipts/"+missing+"/", nil), 101)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown hash must answer 404, got %d", rr.Code)
	}
}

func jsonMS(ms int64) string {
	return strconv.FormatInt(ms, 10)
}
