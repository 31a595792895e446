package model

import "errors"

var (
	ErrTransientVenue       = errors.New("transient venue error")
	ErrValidation           = errors.New("validation error")
	ErrSimulationFailed     = errors.New("bundle simulation failed")
	ErrSubmission           = errors.New("bundle submission failed")
	ErrNonceRejected        = errors.New("nonce rejected")
	ErrUnknownProtocol      = errors.New("unknown protocol")
	ErrExecutionUnsupported = errors.New("venue does not support execution")
)
