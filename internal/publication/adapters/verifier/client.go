// Package verifier is the HTTP adapter for the external zero-knowledge proof
// verifier. Everything it returns is untrusted input.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"sphere/internal/identity"
	"sphere/internal/publication/models"
	"sphere/pkg/platform/circuit"
)

const maxResponseBytes = 1 << 20

// ErrCircuitOpen is returned without contacting the verifier while the
// breaker is open.
var ErrCircuitOpen = errors.New("verifier circuit open")

// ErrorCategory classifies verifier failures.
type ErrorCategory string

const (
	ErrorTimeout  ErrorCategory = "timeout"
	ErrorOutage   ErrorCategory = "outage"
	ErrorBadData  ErrorCategory = "bad_data"
	ErrorRejected ErrorCategory = "rejected"
)

// Error is a categorized verifier failure.
type Error struct {
	Category   ErrorCategory
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("verifier [%s] status %d: %v", e.Category, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("verifier [%s]: %v", e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Client struct {
	baseURL     string
	http        *http.Client
	breaker     *circuit.Breaker
	signalIndex int
	logger      *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(v *Client) {
		v.http = c
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(v *Client) {
		v.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Client) {
		v.logger = logger
	}
}

// New builds a client for the verifier at baseURL. signalIndex is the
// public-signal position that carries the correlation token.
func New(baseURL string, timeout time.Duration, signalIndex int, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: timeout},
		breaker:     circuit.New("verifier"),
		signalIndex: signalIndex,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CorrelationToken decodes the user identifier signal: a decimal field
// element holding the 128-bit token, rendered back as a UUID.
func (c *Client) CorrelationToken(_ context.Context, publicSignals []string) (string, error) {
	if c.signalIndex < 0 || c.signalIndex >= len(publicSignals) {
		return "", fmt.Errorf("public signals too short: need index %d, have %d", c.signalIndex, len(publicSignals))
	}
	return TokenFromSignal(publicSignals[c.signalIndex])
}

// TokenFromSignal converts a decimal signal into the UUID it encodes.
func TokenFromSignal(signal string) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(signal), 10)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("user identifier signal is not a decimal integer")
	}
	if n.BitLen() > 128 {
		return "", fmt.Errorf("user identifier signal exceeds 128 bits")
	}
	var raw [16]byte
	n.FillBytes(raw[:])
	return uuid.UUID(raw).String(), nil
}

// SignalFromToken is the inverse of TokenFromSignal.
func SignalFromToken(token string) (string, error) {
	u, err := uuid.Parse(token)
	if err != nil {
		return "", err
	}
	return new(big.Int).SetBytes(u[:]).String(), nil
}

type verifyRequest struct {
	Proof         json.RawMessage       `json:"proof"`
	PublicSignals []string              `json:"publicSignals"`
	Config        models.VerifierConfig `json:"config"`
}

type verifyResponse struct {
	IsValid           bool            `json:"isValid"`
	IsValidDetails    json.RawMessage `json:"isValidDetails,omitempty"`
	CredentialSubject identity.Claim  `json:"credentialSubject"`
}

// Verify posts the proof to the verifier. Transport failures, timeouts and
// 5xx answers count against the breaker; a 4xx is the verifier rejecting the
// input and does not.
func (c *Client) Verify(ctx context.Context, req models.VerifyRequest) (*models.VerificationResult, error) {
	if !c.breaker.Allow() {
		return nil, &Error{Category: ErrorOutage, Err: ErrCircuitOpen}
	}

	body, err := json.Marshal(verifyRequest{
		Proof:         req.Proof,
		PublicSignals: req.PublicSignals,
		Config:        req.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal verify request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.recordFailure(ctx)
		category := ErrorOutage
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			category = ErrorTimeout
		}
		return nil, &Error{Category: category, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.recordFailure(ctx)
		return nil, &Error{Category: ErrorOutage, Err: err}
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		c.recordFailure(ctx)
		return nil, &Error{Category: ErrorOutage, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	case resp.StatusCode >= http.StatusBadRequest:
		c.breaker.RecordSuccess()
		return nil, &Error{Category: ErrorRejected, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	c.breaker.RecordSuccess()

	var out verifyResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &Error{Category: ErrorBadData, StatusCode: resp.StatusCode, Err: err}
	}
	return &models.VerificationResult{
		IsValid:           out.IsValid,
		IsValidDetails:    out.IsValidDetails,
		CredentialSubject: out.CredentialSubject,
	}, nil
}

func (c *Client) recordFailure(ctx context.Context) {
	_, change := c.breaker.RecordFailure()
	if change.Opened && c.logger != nil {
		c.logger.WarnContext(ctx, "verifier circuit opened", "breaker", c.breaker.Name())
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
