package search

import (
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"dataflux-query-api/internal/config"
	"dataflux-query-api/internal/domain/entity"
	apperrors "dataflux-query-api/pkg/errors"
	"dataflux-query-api/pkg/metrics"
)

type branchBreaker = gobreaker.CircuitBreaker[[]*entity.SearchResult]

// breakers 每个后端一个熔断器；未启用时直接执行
type breakers struct {
	bySource map[entity.Source]*branchBreaker
}

func newBreakers(cfg config.BreakerConfig) *breakers {
	b := &breakers{}
	if !cfg.Enabled {
		return b
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	b.bySource = make(map[entity.Source]*branchBreaker, len(sourceOrder))
	for _, src := range sourceOrder {
		b.bySource[src] = gobreaker.NewCircuitBreaker[[]*entity.SearchResult](gobreaker.Settings{
			Name:        string(src),
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// 校验失败与资源不存在不是后端故障
			IsSuccessful: func(err error) bool {
				return err == nil ||
					apperrors.IsCode(err, apperrors.CodeInvalidParam) ||
					apperrors.IsCode(err, apperrors.CodeNotFound)
			},
			OnStateChange: func(name string, _, to gobreaker.State) {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			},
		})
		metrics.CircuitBreakerState.WithLabelValues(string(src)).Set(0)
	}
	return b
}

func (b *breakers) execute(src entity.Source, fn func() ([]*entity.SearchResult, error)) ([]*entity.SearchResult, error) {
	cb, ok := b.bySource[src]
	if !ok {
		return fn()
	}
	res, err := cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperrors.BackendUnavailable(string(src), fmt.Errorf("circuit breaker: %w", err))
	}
	return res, err
}

func (b *breakers) state(src entity.Source) gobreaker.State {
	if cb, ok := b.bySource[src]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
