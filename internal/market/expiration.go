package market

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ExpirationCycle classifies an expiration date.
type ExpirationCycle string

const (
	Monthly ExpirationCycle = "monthly"
	Weekly  ExpirationCycle = "weekly"
)

// ErrNoExpiration is returned by FindExpiration when the chain has no
// expiration satisfying the request.
var ErrNoExpiration = errors.New("no matching expiration")

// ExpirationType returns Monthly for the third Friday of a month (a Friday
// falling on the 15th through the 21st) and Weekly for anything else.
func ExpirationType(d time.Time) ExpirationCycle {
	if d.Weekday() == time.Friday && d.Day() >= 15 && d.Day() <= 21 {
		return Monthly
	}
	return Weekly
}

// FindExpiration shifts ref by daysOut days and searches the current chain's
// expirations from there: forward for the first expiration on or after the
// shifted date when daysOut >= 0, backward for the last one on or before it
// otherwise. Weekly expirations are skipped unless weekly is set.
func (c *Chain) FindExpiration(ref time.Time, daysOut int, weekly bool) (time.Time, error) {
	exps := c.Expirations()
	if len(exps) == 0 {
		return time.Time{}, fmt.Errorf("%w: chain %s has no expirations on %s",
			ErrNoExpiration, c.data.symbol, c.date.Format(time.DateOnly))
	}
	target := ref.AddDate(0, 0, daysOut)
	ok := func(e time.Time) bool { return weekly || ExpirationType(e) == Monthly }

	if daysOut >= 0 {
		if last := exps[len(exps)-1]; target.After(last) {
			return time.Time{}, fmt.Errorf("%w: %s is past the last expiration %s",
				ErrNoExpiration, target.Format(time.DateOnly), last.Format(time.DateOnly))
		}
		for _, e := range exps {
			if !e.Before(target) && ok(e) {
				return e, nil
			}
		}
	} else {
		if first := exps[0]; target.Before(first) {
			return time.Time{}, fmt.Errorf("%w: %s is before the first expiration %s",
				ErrNoExpiration, target.Format(time.DateOnly), first.Format(time.DateOnly))
		}
		for _, e := range slices.Backward(exps) {
			if !e.After(target) && ok(e) {
				return e, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%w: none near %s", ErrNoExpiration, target.Format(time.DateOnly))
}
