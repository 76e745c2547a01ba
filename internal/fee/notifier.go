package fee

import "context"

// Notifier receives fee changes after they are committed. Delivery errors are
// logged by the engine and never roll back state.
type Notifier interface {
	FeeChanged(ctx context.Context, change FeeChange) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, change FeeChange) error

func (f NotifierFunc) FeeChanged(ctx context.Context, change FeeChange) error {
	return f(ctx, change)
}
