// Package gateway is an HTTP client for a Chapa-style payment gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"travel/internal/monitoring"
)

const (
	opInitialize = "initialize"
	opVerify     = "verify"

	// maxBodyBytes bounds how much of a gateway response is read.
	maxBodyBytes = 1 << 20
)

// Outcome is the gateway's verdict on a transaction.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePending Outcome = "pending"
	OutcomeDenied  Outcome = "denied"
)

// InitializeRequest describes a checkout to open at the gateway.
type InitializeRequest struct {
	Amount      decimal.Decimal
	Currency    string
	TxRef       string
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	Title       string
	Description string
	CallbackURL string
	ReturnURL   string
}

// InitializeResult is a successfully opened checkout.
type InitializeResult struct {
	Reference   string
	CheckoutURL string
	Raw         json.RawMessage
}

// VerifyResult is the gateway's current view of a transaction.
type VerifyResult struct {
	Outcome       Outcome
	Reference     string
	PaymentMethod string
	Raw           json.RawMessage
}

// Config holds the client settings.
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client talks to the payment gateway.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a gateway client. Outbound calls are traced as New Relic
// external segments when the request context carries a transaction.
func NewClient(cfg Config, log *zap.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		},
		log: log.With(zap.String("component", "gateway")),
	}
}

type envelope struct {
	Message json.RawMessage `json:"message"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
}

// message returns the envelope message, which the gateway sends either as a
// string or as a field-to-errors object.
func (e envelope) message() string {
	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil {
		return s
	}
	return string(e.Message)
}

type initializePayload struct {
	Amount        string        `json:"amount"`
	Currency      string        `json:"currency"`
	Email         string        `json:"email"`
	FirstName     string        `json:"first_name,omitempty"`
	LastName      string        `json:"last_name,omitempty"`
	PhoneNumber   string        `json:"phone_number,omitempty"`
	TxRef         string        `json:"tx_ref"`
	CallbackURL   string        `json:"callback_url,omitempty"`
	ReturnURL     string        `json:"return_url,omitempty"`
	Customization customization `json:"customization"`
}

type customization struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type initializeData struct {
	CheckoutURL string `json:"checkout_url"`
}

type verifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	TxRef     string `json:"tx_ref"`
	Method    string `json:"method"`
}

// Initialize opens a checkout for req.TxRef and returns the hosted checkout URL.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	payload := initializePayload{
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.Phone,
		TxRef:       req.TxRef,
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
		Customization: customization{
			Title:       req.Title,
			Description: req.Description,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, c.fail(opInitialize, &Error{Op: opInitialize, Kind: KindMalformedResponse, Reason: "encode payload", Err: err})
	}

	env, raw, err := c.do(ctx, opInitialize, http.MethodPost, "/v1/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.CheckoutURL == "" {
		return nil, c.fail(opInitialize, &Error{Op: opInitialize, Kind: KindMalformedResponse, Reason: "missing checkout_url", Err: err})
	}

	c.log.Info("checkout initialized", zap.String("tx_ref", req.TxRef))
	return &InitializeResult{
		Reference:   req.TxRef,
		CheckoutURL: data.CheckoutURL,
		Raw:         raw,
	}, nil
}

// Verify asks the gateway for the current state of txRef.
func (c *Client) Verify(ctx context.Context, txRef string) (*VerifyResult, error) {
	path := "/v1/transaction/verify/" + url.PathEscape(txRef)

	env, raw, err := c.do(ctx, opVerify, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Status == "" {
		return nil, c.fail(opVerify, &Error{Op: opVerify, Kind: KindMalformedResponse, Reason: "missing transaction status", Err: err})
	}

	result := &VerifyResult{
		Outcome:       outcomeOf(data.Status),
		Reference:     data.Reference,
		PaymentMethod: data.Method,
		Raw:           raw,
	}
	c.log.Info("transaction verified",
		zap.String("tx_ref", txRef),
		zap.String("outcome", string(result.Outcome)),
	)
	return result, nil
}

func outcomeOf(status string) Outcome {
	switch strings.ToLower(status) {
	case "success", "successful", "completed":
		return OutcomeSuccess
	case "failed", "cancelled", "canceled", "reversed", "refunded":
		return OutcomeDenied
	default:
		return OutcomePending
	}
}

// do performs one request and returns the decoded success envelope. Every
// failure comes back as *Error.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (*envelope, json.RawMessage, error) {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, c.failAfter(op, start, &Error{Op: op, Kind: KindUnreachable, Reason: "build request", Err: err})
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, c.failAfter(op, start, classifyTransport(op, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, c.failAfter(op, start, classifyTransport(op, err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, nil, c.failAfter(op, start, &Error{Op: op, Kind: KindUnreachable, Reason: resp.Status})
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		reason := resp.Status
		if decodeErr == nil && len(env.Message) > 0 {
			reason = env.message()
		}
		return nil, nil, c.failAfter(op, start, &Error{Op: op, Kind: KindRejected, Reason: reason})
	}

	if decodeErr != nil {
		return nil, nil, c.failAfter(op, start, &Error{Op: op, Kind: KindMalformedResponse, Reason: "undecodable body", Err: decodeErr})
	}

	if !strings.EqualFold(env.Status, "success") {
		return nil, nil, c.failAfter(op, start, &Error{Op: op, Kind: KindRejected, Reason: env.message()})
	}

	monitoring.RecordGatewayCall(op, "ok", time.Since(start))
	return &env, json.RawMessage(raw), nil
}

func classifyTransport(op string, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Op: op, Kind: KindTimeout, Reason: "no response before deadline", Err: err}
	default:
		return &Error{Op: op, Kind: KindUnreachable, Reason: "transport failure", Err: err}
	}
}

func (c *Client) failAfter(op string, start time.Time, gwErr *Error) error {
	monitoring.RecordGatewayCall(op, string(gwErr.Kind), time.Since(start))
	return c.fail(op, gwErr)
}

func (c *Client) fail(op string, gwErr *Error) error {
	c.log.Warn("gateway call failed",
		zap.String("operation", op),
		zap.String("kind", string(gwErr.Kind)),
		zap.String("reason", gwErr.Reason),
		zap.Error(gwErr.Err),
	)
	return gwErr
}
