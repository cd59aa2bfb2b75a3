package duprclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/Black-And-White-Club/dupr-bridge/config"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	submitPath    = "/match/v1.0/create"
	searchPath    = "/player/v1.0/search"
	subscribePath = "/user/v1.0/subscribe/rating-changes"

	maxResponseBytes = 1 << 20
)

// Client talks to the rating authority. Successive calls are spaced by the
// configured inter-call delay and guarded by a circuit breaker that only
// counts transport errors and 5xx responses.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a Client for cfg. httpClient may be nil.
func NewClient(cfg config.DUPRConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.InterCallDelay > 0 {
		limit = rate.Every(cfg.InterCallDelay)
	}

	failures := uint32(cfg.BreakerFailures)
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "dupr",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("DUPR circuit breaker changed state",
				attr.String("breaker", name),
				attr.String("from", from.String()),
				attr.String("to", to.String()),
			)
		},
	})
	return c
}

type response struct {
	status int
	body   []byte
}

// serverError carries a 5xx response through the breaker so it counts as a failure.
type serverError struct {
	resp response
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error %d", e.resp.status)
}

// do sends one request. A non-nil error means no HTTP response was obtained.
func (c *Client) do(ctx context.Context, method, path, token string, payload any) (response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return response{}, fmt.Errorf("encode request: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return response{}, err
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		r := response{status: resp.StatusCode, body: data}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &serverError{resp: r}
		}
		return r, nil
	})

	var se *serverError
	if errors.As(err, &se) {
		return se.resp, nil
	}
	if err != nil {
		return response{}, err
	}
	return out.(response), nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// errorMessage extracts a readable message from an error body.
func errorMessage(status int, body []byte) string {
	var parsed struct {
		Message string            `json:"message"`
		Error   string            `json:"error"`
		Errors  []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Message != "":
			return parsed.Message
		case parsed.Error != "":
			return parsed.Error
		case len(parsed.Errors) > 0:
			msgs := make([]string, 0, len(parsed.Errors))
			for _, raw := range parsed.Errors {
				var s string
				if json.Unmarshal(raw, &s) == nil {
					msgs = append(msgs, s)
					continue
				}
				var obj struct {
					Message string `json:"message"`
				}
				if json.Unmarshal(raw, &obj) == nil && obj.Message != "" {
					msgs = append(msgs, obj.Message)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("HTTP %d", status)
	}
	if len(text) > 300 {
		text = text[:300] + "..."
	}
	return fmt.Sprintf("HTTP %d: %s", status, text)
}
