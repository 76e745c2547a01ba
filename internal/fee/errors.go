package fee

import (
	"errors"

	"dynamicFee/internal/fixedpoint"
)

var (
	ErrUnknownPool        = errors.New("unknown pool")
	ErrDuplicatePool      = errors.New("duplicate pool")
	ErrInvalidScaling     = errors.New("invalid scaling")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrUnknownToken       = errors.New("token not in pool")
	ErrStaleObservation   = errors.New("observation older than last update")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrInvalidBounds      = errors.New("invalid bounds")
	ErrArithmeticOverflow = fixedpoint.ErrArithmeticOverflow
	ErrDivisionByZero     = fixedpoint.ErrDivisionByZero
)
