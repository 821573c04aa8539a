package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/alfredjeanlab/kgview/internal/model"
)

// BreakerConfig holds configuration for the backend circuit breaker.
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration

	// The breaker trips when at least MinRequests were made in the current
	// interval and the failure ratio reaches FailureThreshold.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used by the CLI and the
// explorer server.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerClient wraps an API so that every call goes through a circuit
// breaker. Only transport failures and 5xx responses count as failures;
// 4xx answers are the backend working as intended.
type BreakerClient struct {
	next   API
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

var _ API = (*BreakerClient)(nil)

// NewBreakerClient wraps next.
func NewBreakerClient(next API, cfg BreakerConfig, logger *zap.Logger) *BreakerClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BreakerClient{next: next, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: countsAsSuccess,
	})
	return b
}

// State returns the breaker state.
func (b *BreakerClient) State() gobreaker.State { return b.cb.State() }

func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var ne *model.NetworkError
	if errors.As(err, &ne) && ne.StatusCode != 0 && ne.StatusCode < http.StatusInternalServerError {
		return true
	}
	return false
}

// call runs fn through the breaker. A rejection by an open breaker is
// reported as a *model.NetworkError so callers handle it like any other
// backend failure.
func call[T any](b *BreakerClient, op string, fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.logger.Warn("backend call rejected by circuit breaker", zap.String("op", op), zap.Error(err))
			return zero, &model.NetworkError{Op: op, Message: "service temporarily unavailable", Err: err}
		}
		return zero, err
	}
	return out.(T), nil
}

func (b *BreakerClient) Search(ctx context.Context, keyword string) ([]SearchResult, error) {
	return call(b, "search", func() ([]SearchResult, error) { return b.next.Search(ctx, keyword) })
}

func (b *BreakerClient) Upload(ctx context.Context, filename string, content io.Reader, userID string) (*UploadResult, error) {
	return call(b, "upload", func() (*UploadResult, error) { return b.next.Upload(ctx, filename, content, userID) })
}

func (b *BreakerClient) FetchGraph(ctx context.Context, graphID string) (*model.Graph, error) {
	return call(b, "fetch graph", func() (*model.Graph, error) { return b.next.FetchGraph(ctx, graphID) })
}

func (b *BreakerClient) ListUserGraphIDs(ctx context.Context, userID string) ([]string, error) {
	return call(b, "list graphs", func() ([]string, error) { return b.next.ListUserGraphIDs(ctx, userID) })
}

func (b *BreakerClient) ListUserGraphs(ctx context.Context, userID string) ([]*model.Graph, error) {
	return call(b, "list graphs", func() ([]*model.Graph, error) { return b.next.ListUserGraphs(ctx, userID) })
}

func (b *BreakerClient) DeleteGraph(ctx context.Context, graphID string) (string, error) {
	return call(b, "delete graph", func() (string, error) { return b.next.DeleteGraph(ctx, graphID) })
}

func (b *BreakerClient) DeleteUserGraphs(ctx context.Context, userID string) (string, error) {
	return call(b, "delete user graphs", func() (string, error) { return b.next.DeleteUserGraphs(ctx, userID) })
}

func (b *BreakerClient) ExportGraph(ctx context.Context, graphID string) ([]byte, error) {
	return call(b, "export", func() ([]byte, error) { return b.next.ExportGraph(ctx, graphID) })
}

func (b *BreakerClient) DeleteNode(ctx context.Context, graphID, nodeID string) (string, error) {
	return call(b, "delete node", func() (string, error) { return b.next.DeleteNode(ctx, graphID, nodeID) })
}

func (b *BreakerClient) AddNode(ctx context.Context, req *AddNodeRequest) (*AddNodeResult, error) {
	return call(b, "add node", func() (*AddNodeResult, error) { return b.next.AddNode(ctx, req) })
}

func (b *BreakerClient) DeleteUser(ctx context.Context, userID, password string) (string, error) {
	return call(b, "delete user", func() (string, error) { return b.next.DeleteUser(ctx, userID, password) })
}

func (b *BreakerClient) Close() error { return b.next.Close() }
