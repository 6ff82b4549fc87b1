package builtins

import "tyche/internal/strategy"

// Register adds every built-in strategy to r.
func Register(r *strategy.Registry) {
	r.Register(func() strategy.Strategy { return NewBuyHold() })
	r.Register(func() strategy.Strategy { return NewPutWriter() })
}
