// Package gather downloads historical market data into the local stores.
package gather

import (
	"context"
	"time"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass. It returns early when ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange represents an inclusive range of days to fetch.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the range holds no days.
func (r DateRange) Empty() bool { return r.End.Before(r.Start) }
