package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"agrisync/internal/logging"
	"agrisync/internal/queue"
	"agrisync/internal/services"
)

const maxResponseBytes = 4 << 20

// Config captures the remote endpoint settings.
type Config struct {
	BaseURL   string
	APIToken  string
	UserAgent string
}

// ResultSink receives the response body of a successful delivery.
type ResultSink interface {
	StoreResult(ctx context.Context, id string, kind queue.Kind, result json.RawMessage) error
}

// Client posts queue items to the advisory backend.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sink       ResultSink
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithResultSink routes successful response bodies to sink.
func WithResultSink(sink ResultSink) Option {
	return func(c *Client) {
		c.sink = sink
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a dispatcher for cfg. Requests are bounded by the
// caller's context; the HTTP client carries no timeout of its own.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			BaseURL:   strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIToken:  strings.TrimSpace(cfg.APIToken),
			UserAgent: strings.TrimSpace(cfg.UserAgent),
		},
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "dispatch")
	if client.cfg.UserAgent == "" {
		client.cfg.UserAgent = "agrisync"
	}
	return client
}

type envelope struct {
	ID      string     `json:"id"`
	Kind    queue.Kind `json:"kind"`
	Payload Request    `json:"payload"`
}

// Dispatch delivers one item. A nil error means the remote end accepted it.
func (c *Client) Dispatch(ctx context.Context, item queue.Item) error {
	req, err := Decode(item.Kind, item.Payload)
	if err != nil {
		return err
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, endpointPath(req))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "dispatch", "build url", c.cfg.BaseURL, err)
	}
	encoded, err := json.Marshal(envelope{ID: item.ID, Kind: req.Kind(), Payload: req})
	if err != nil {
		return services.Wrap(services.ErrValidation, "dispatch", "encode body", item.ID, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "dispatch", "new request", endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", item.ID)
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.APIToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransportError(ctx, endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyTransportError(ctx, endpoint, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrRemoteFailure, "dispatch", "post",
			fmt.Sprintf("http %d: %s", resp.StatusCode, summarizeBody(body)), nil)
	}

	c.logger.Debug("item delivered",
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldKind, string(item.Kind)),
		logging.Int("status", resp.StatusCode),
	)
	c.storeResult(ctx, item, body)
	return nil
}

// storeResult hands the response to the sink. The delivery already
// succeeded, so sink failures are logged and do not fail the item.
func (c *Client) storeResult(ctx context.Context, item queue.Item, body []byte) {
	if c.sink == nil {
		return
	}
	result := extractResult(body)
	if result == nil {
		return
	}
	if err := c.sink.StoreResult(ctx, item.ID, item.Kind, result); err != nil {
		logging.WarnWithContext(c.logger, "failed to store delivery result", "dispatch_result_store_failed",
			logging.String(logging.FieldItemID, item.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the data directory is writable"),
			logging.String(logging.FieldImpact, "the answer is not available offline"),
		)
	}
}

// extractResult returns the "result" member of a JSON body, the whole body
// when it is JSON without one, or the body as a JSON string otherwise.
func extractResult(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if !json.Valid(trimmed) {
		quoted, err := json.Marshal(string(trimmed))
		if err != nil {
			return nil
		}
		return quoted
	}
	var wrapper struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err == nil && len(wrapper.Result) > 0 {
		return wrapper.Result
	}
	return append(json.RawMessage(nil), trimmed...)
}

func classifyTransportError(ctx context.Context, endpoint string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "dispatch", "post", endpoint, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "dispatch", "post", endpoint, err)
	}
	return services.Wrap(services.ErrNetworkUnavailable, "dispatch", "post", endpoint, err)
}

func summarizeBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
