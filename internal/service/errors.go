package service

import "errors"

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidCPF        = errors.New("CPF must contain 11 digits")
	ErrSelfTransfer      = errors.New("cannot transfer to your own account")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrInvalidFilter     = errors.New("unknown history filter")

	// ErrStorageFault means the operation could not be committed even
	// after retrying transient conflicts. Nothing was applied.
	ErrStorageFault = errors.New("operation aborted, storage unavailable")
)
