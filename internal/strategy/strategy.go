// Package strategy defines the Strategy interface for trading strategies,
// provides a Registry for managing strategy implementations and runs them
// through backtests.
package strategy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tyche/internal/broker"
	"tyche/internal/domain"
)

// Strategy is the interface that all trading strategies must implement. A
// Strategy instance serves a single run.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init performs any one-time setup required before the run starts
	// trading symbol.
	Init(ctx context.Context, symbol string) error

	// OnDay is called once for every opened trading day and returns the
	// orders to place, in order.
	OnDay(ctx context.Context, date time.Time, b broker.Broker) ([]domain.Order, error)

	// OnAssignment is called after a day closes with put assignments. shares
	// is the number of shares of underlying taken on.
	OnAssignment(ctx context.Context, shares int, underlying string, date time.Time, b broker.Broker) ([]domain.Order, error)
}

// Base provides the default assignment handling. Embed it in strategies
// that do not want to keep assigned stock.
type Base struct{}

// OnAssignment sells the assigned shares at market.
func (Base) OnAssignment(_ context.Context, shares int, underlying string, _ time.Time, _ broker.Broker) ([]domain.Order, error) {
	if shares == 0 {
		return nil, nil
	}
	return []domain.Order{
		domain.NewOrder(domain.Leg{Instrument: domain.Equity(underlying), Quantity: -shares}),
	}, nil
}

// Factory creates a fresh strategy instance.
type Factory func() Strategy

// Registry holds a named collection of strategy factories for lookup and
// enumeration. Runs get their own instance, so parallel runs never share
// strategy state.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory to the registry, keyed by the Name() of the
// strategies it builds.
func (r *Registry) Register(f Factory) {
	r.factories[f().Name()] = f
}

// New builds a strategy by name.
func (r *Registry) New(name string) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (have %v)", name, r.List())
	}
	return f(), nil
}

// Has reports whether a strategy is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
