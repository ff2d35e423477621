package appstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

const (
	statusOK                   = 0
	statusSandboxReceiptOnProd = 21007
	statusProdReceiptOnSandbox = 21008

	maxAttemptsPerEndpoint = 5
	initialBackoff         = 250 * time.Millisecond
	maxBackoff             = 8 * time.Second
	backoffJitter          = 0.2
)

// VerifierConfig carries the endpoints and timing knobs for receipt
// verification against Apple.
type VerifierConfig struct {
	Client         *http.Client
	ProductionURL  string
	SandboxURL     string
	SharedSecret   string
	AttemptTimeout time.Duration
	VerifyBudget   time.Duration
}

// Verifier talks to Apple's verification endpoints. A receipt is sent to
// production first; status 21007 redirects it to sandbox, status 21008
// redirects a sandbox answer back to production. At most one redirect is
// followed per verification.
type Verifier struct {
	client         *http.Client
	productionURL  string
	sandboxURL     string
	sharedSecret   string
	attemptTimeout time.Duration
	verifyBudget   time.Duration

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	attemptTimeout := cfg.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = 10 * time.Second
	}
	verifyBudget := cfg.VerifyBudget
	if verifyBudget <= 0 {
		verifyBudget = 30 * time.Second
	}
	return &Verifier{
		client:         client,
		productionURL:  cfg.ProductionURL,
		sandboxURL:     cfg.SandboxURL,
		sharedSecret:   cfg.SharedSecret,
		attemptTimeout: attemptTimeout,
		verifyBudget:   verifyBudget,
		sleep:          sleepCtx,
		jitter:         rand.Float64,
	}
}

type verifyRequest struct {
	ReceiptData string `json:"receipt-data"`
	Password    string `json:"password"`
}

type verifyResponseWire struct {
	Status            int    `json:"status"`
	Environment       string `json:"environment"`
	IsRetryable       bool   `json:"is-retryable"`
	LatestReceiptInfo []struct {
		OriginalTransactionID string `json:"original_transaction_id"`
		ExpiresDateMS         string `json:"expires_date_ms"`
	} `json:"latest_receipt_info"`
}

// Verify submits the raw receipt bytes to Apple and returns the parsed
// response. Redirect statuses are followed once; a second redirect means
// the receipt is invalid.
func (v *Verifier) Verify(ctx context.Context, receiptData []byte) (VerificationResponse, error) {
	if len(receiptData) == 0 {
		return VerificationResponse{}, fmt.Errorf("empty receipt data: %w", ErrInvalidReceipt)
	}

	ctx, cancel := context.WithTimeout(ctx, v.verifyBudget)
	defer cancel()

	payload, err := json.Marshal(verifyRequest{
		ReceiptData: base64.StdEncoding.EncodeToString(receiptData),
		Password:    v.sharedSecret,
	})
	if err != nil {
		return VerificationResponse{}, fmt.Errorf("encode verification request: %w", err)
	}

	resp, err := v.verifyAt(ctx, v.productionURL, payload)
	if err != nil {
		return VerificationResponse{}, err
	}

	var redirectURL string
	switch resp.Status {
	case statusOK:
		return resp, nil
	case statusSandboxReceiptOnProd:
		redirectURL = v.sandboxURL
	case statusProdReceiptOnSandbox:
		redirectURL = v.productionURL
	default:
		return VerificationResponse{}, fmt.Errorf("verification status %d: %w", resp.Status, ErrInvalidReceipt)
	}

	resp, err = v.verifyAt(ctx, redirectURL, payload)
	if err != nil {
		return VerificationResponse{}, err
	}
	if resp.Status != statusOK {
		return VerificationResponse{}, fmt.Errorf("verification status %d after redirect: %w", resp.Status, ErrInvalidReceipt)
	}
	return resp, nil
}

// verifyAt runs the per-endpoint attempt loop: up to maxAttemptsPerEndpoint
// tries while Apple flags the answer retryable, with exponential backoff
// between tries.
func (v *Verifier) verifyAt(ctx context.Context, url string, payload []byte) (VerificationResponse, error) {
	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		resp, err := v.exchange(ctx, url, payload)
		if err != nil {
			if ctx.Err() != nil {
				return VerificationResponse{}, budgetError(ctx)
			}
			return VerificationResponse{}, err
		}
		if !resp.Retryable {
			return resp, nil
		}
		if attempt >= maxAttemptsPerEndpoint {
			return VerificationResponse{}, fmt.Errorf("retry attempts exhausted: %w", ErrRetryable)
		}
		if err := v.sleep(ctx, v.jittered(backoff)); err != nil {
			return VerificationResponse{}, budgetError(ctx)
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (v *Verifier) exchange(ctx context.Context, url string, payload []byte) (VerificationResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, v.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return VerificationResponse{}, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := v.client.Do(req)
	if err != nil {
		return VerificationResponse{}, fmt.Errorf("send verification request: %w: %v", ErrTransport, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return VerificationResponse{}, fmt.Errorf("verification endpoint answered %d: %w", httpResp.StatusCode, ErrTransport)
	}

	var wire verifyResponseWire
	if err := json.NewDecoder(httpResp.Body).Decode(&wire); err != nil {
		return VerificationResponse{}, fmt.Errorf("malformed verification response: %w", ErrInvalidReceipt)
	}
	return parseWire(wire), nil
}

func (v *Verifier) jittered(d time.Duration) time.Duration {
	// jitter() in [0,1) maps to a factor in [1-backoffJitter, 1+backoffJitter)
	factor := 1 + backoffJitter*(2*v.jitter()-1)
	return time.Duration(float64(d) * factor)
}

func parseWire(wire verifyResponseWire) VerificationResponse {
	resp := VerificationResponse{
		Status:    wire.Status,
		Retryable: wire.IsRetryable,
	}
	if wire.Environment == "Sandbox" {
		resp.Environment = EnvironmentSandbox
	} else {
		resp.Environment = EnvironmentProduction
	}
	for _, info := range wire.LatestReceiptInfo {
		expiresMS, _ := strconv.ParseInt(info.ExpiresDateMS, 10, 64)
		resp.Transactions = append(resp.Transactions, Transaction{
			OriginalTransactionID: info.OriginalTransactionID,
			ExpiresAtMS:           expiresMS,
		})
	}
	return resp
}

func budgetError(ctx context.Context) error {
	if ctx.Err() == context.Canceled {
		return fmt.Errorf("verification aborted: %w", ctx.Err())
	}
	return fmt.Errorf("verification budget exceeded: %w", ErrRetryable)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
