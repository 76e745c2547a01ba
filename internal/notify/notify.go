// Package notify delivers fee-change notifications to metrics and storage.
package notify

import (
	"context"
	"errors"

	"dynamicFee/internal/fee"
)

// Multi fans a fee change out to every notifier and joins their errors.
type Multi []fee.Notifier

func (m Multi) FeeChanged(ctx context.Context, change fee.FeeChange) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.FeeChanged(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
