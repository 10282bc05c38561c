package state

import "errors"

// The policy and lookup errors returned before any state mutation takes
// place. Execution failures surface the engine's own error message.
var (
	ErrDecode           = errors.New("could not decode transaction")
	ErrGasLimit         = errors.New("requested gas greater than block gas limit")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrGasPrice         = errors.New("insufficient gas price")
	ErrBlockNotFound    = errors.New("block not found")
)
