package strategy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/code19m/errx"
	"github.com/goccy/go-json"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/sony/gobreaker/v2"
)

const (
	CodeModelUnavailable   = "MODEL_UNAVAILABLE"
	CodeMetricsUnavailable = "METRICS_UNAVAILABLE"
)

// ModelRequest asks the model-serving scorer for item scores.
type ModelRequest struct {
	PlayerID  string    `json:"player_id"`
	Embedding []float64 `json:"embedding"`
	ItemIDs   []string  `json:"item_ids"`
}

type modelResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// ModelClient scores items remotely.
type ModelClient interface {
	Score(ctx context.Context, req ModelRequest) (map[string]float64, error)
}

// HTTPModelClient posts ModelRequests to a model-serving endpoint behind a circuit breaker.
// Every call is bounded by the client timeout and by the caller's context.
type HTTPModelClient struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[map[string]float64]
}

func NewHTTPModelClient(cfg EmbeddingConfig, log logger.Logger) *HTTPModelClient {
	log = log.Named("strategy.model_client")

	breaker := gobreaker.NewCircuitBreaker[map[string]float64](gobreaker.Settings{
		Name:        "model-serving",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.With("breaker", name, "from", from.String(), "to", to.String()).Warn("circuit breaker state changed")
		},
	})

	return &HTTPModelClient{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		http:     &http.Client{},
		breaker:  breaker,
	}
}

// State exposes the breaker state for diagnostics.
func (c *HTTPModelClient) State() gobreaker.State {
	return c.breaker.State()
}

func (c *HTTPModelClient) Score(ctx context.Context, req ModelRequest) (map[string]float64, error) {
	scores, err := c.breaker.Execute(func() (map[string]float64, error) {
		return c.do(ctx, req)
	})
	if err != nil {
		details := errx.D{"endpoint": c.endpoint}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			details["breaker"] = c.breaker.State().String()
		}
		return nil, errx.Wrap(err,
			errx.WithCode(CodeModelUnavailable),
			errx.WithType(errx.T_Internal),
			errx.WithDetails(details),
		)
	}
	return scores, nil
}

func (c *HTTPModelClient) do(ctx context.Context, req ModelRequest) (map[string]float64, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errx.Wrap(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errx.New(fmt.Sprintf("model serving returned %d", resp.StatusCode),
			errx.WithDetails(errx.D{"status": resp.StatusCode, "body": string(payload)}),
		)
	}

	var out modelResponse
	err = json.Unmarshal(payload, &out)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return out.Scores, nil
}
