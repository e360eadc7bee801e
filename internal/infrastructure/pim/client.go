package pim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pimsync/backend/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum allowed response size from the PIM endpoint (10MB)
const maxResponseSize = 10 * 1024 * 1024

// protocolVersion is the JSON-RPC version sent with every request
const protocolVersion = "2.0"

// requestSeq numbers requests across every client of the process
var requestSeq atomic.Int64

// Caller issues one JSON-RPC call
type Caller interface {
	Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error)
}

// Client performs JSON-RPC calls against the PIM endpoint. It does not
// retry; retry policy belongs to the Paginator or the scheduler.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout is overwritten with
// the configured per-call timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new client with the given configuration
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Timeout = config.Timeout
	if config.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type rpcRequest struct {
	Version string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
	ID      int64          `json:"id"`
}

type rpcResponse struct {
	Version string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcErrorObject `json:"error"`
	ID      json.RawMessage `json:"id"`
}

type rpcErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ---------------------------------------------------------------------------
// Call
// ---------------------------------------------------------------------------

// Call sends one JSON-RPC request and returns the raw result member of the
// response. Failures are *RPCError values classified by ErrTransport,
// ErrDecode or ErrRemote.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	id := requestSeq.Add(1)

	ctx, span := telemetry.StartSpan(ctx, "pim.call",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("rpc.method", method),
		telemetry.WithAttribute("rpc.request_id", id),
	)
	defer span.End()

	start := time.Now()
	result, err := c.call(ctx, method, params, id)
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.Warn("PIM call failed",
			zap.String("method", method),
			zap.Int64("request_id", id),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("PIM call completed",
		zap.String("method", method),
		zap.Int64("request_id", id),
		zap.Duration("duration", time.Since(start)),
		zap.Int("result_bytes", len(result)),
	)
	return result, nil
}

func (c *Client) call(ctx context.Context, method string, params map[string]any, id int64) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transportError("rate limiter", err)
		}
	}

	payload, err := json.Marshal(rpcRequest{
		Version: protocolVersion,
		Method:  method,
		Params:  params,
		ID:      id,
	})
	if err != nil {
		return nil, fmt.Errorf("pim: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("pim: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError("request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, transportError("failed to read response", err)
	}
	if len(body) > maxResponseSize {
		return nil, decodeError(fmt.Sprintf("response too large, limit is %d bytes", maxResponseSize), nil)
	}

	envelope, decodeErr := decodeEnvelope(body)
	if decodeErr != nil {
		if resp.StatusCode >= 400 {
			return nil, transportError(fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
		}
		return nil, decodeErr
	}

	if envelope.Error != nil {
		return nil, &RPCError{
			Kind:    ErrRemote,
			Message: envelope.Error.Message,
			Code:    envelope.Error.Code,
			Data:    envelope.Error.Data,
		}
	}
	if resp.StatusCode >= 400 {
		return nil, transportError(fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	if len(envelope.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return envelope.Result, nil
}

// authenticate attaches exactly one auth header
func (c *Client) authenticate(req *http.Request) {
	switch c.config.AuthScheme {
	case AuthSchemeBearer:
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	case AuthSchemeToken:
		req.Header.Set(c.config.TokenHeader, c.config.Token)
	}
}

// decodeEnvelope parses a JSON-RPC response envelope. A body that is valid
// JSON but not an object, such as a relayed escaped string, is rejected.
func decodeEnvelope(body []byte) (*rpcResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, decodeError("empty response body", nil)
	}
	if trimmed[0] != '{' {
		if trimmed[0] == '"' && json.Valid(trimmed) {
			return nil, decodeError("response is an encoded string, not an envelope", nil)
		}
		return nil, decodeError("response is not a JSON object", nil)
	}

	var envelope rpcResponse
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, decodeError("invalid JSON", err)
	}
	return &envelope, nil
}

var _ Caller = (*Client)(nil)
