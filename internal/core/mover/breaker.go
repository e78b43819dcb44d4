package mover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nzyazin/wallettx/internal/core/logger"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

var ErrMoverUnavailable = errors.New("money mover unavailable")

type MoneyMover interface {
	MoveMoney(ctx context.Context, transactionID string, payerID, payeeID int64, amount decimal.Decimal) (string, error)
}

type BreakerSettings struct {
	Name string
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
}

// BreakerMover fails fast while the wrapped mover keeps erroring. A declined
// move (empty reference) is a normal answer and does not count as a failure.
type BreakerMover struct {
	next MoneyMover
	cb   *gobreaker.CircuitBreaker
	log  logger.Logger
}

func NewBreakerMover(next MoneyMover, settings BreakerSettings, log logger.Logger) *BreakerMover {
	if settings.Name == "" {
		settings.Name = "money-mover"
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}

	m := &BreakerMover{next: next, log: log}
	m.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Money mover breaker state changed",
				logger.StringField("breaker", name),
				logger.StringField("from", from.String()),
				logger.StringField("to", to.String()))
		},
	})
	return m
}

func (m *BreakerMover) MoveMoney(ctx context.Context, transactionID string, payerID, payeeID int64, amount decimal.Decimal) (string, error) {
	result, err := m.cb.Execute(func() (interface{}, error) {
		return m.next.MoveMoney(ctx, transactionID, payerID, payeeID, amount)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %w", ErrMoverUnavailable, err)
		}
		return "", err
	}

	ref, _ := result.(string)
	return ref, nil
}

func (m *BreakerMover) State() gobreaker.State {
	return m.cb.State()
}
