package common

import "errors"

var (
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidSide      = errors.New("invalid side")
	ErrInvalidOrderType = errors.New("invalid order type")
	ErrInvalidTickSize  = errors.New("invalid tick size")
)
