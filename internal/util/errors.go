package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in PDF")

	ErrQuotaExhausted = errors.New("provider quota exhausted")
	ErrRateLimited    = errors.New("provider rate limited")
	ErrUnreachable    = errors.New("provider unreachable")
	ErrInvalidModel   = errors.New("invalid model")
	ErrNotConfigured  = errors.New("provider not configured")
	ErrContextTooLong = errors.New("context too long")

	ErrNoModels       = errors.New("no models requested")
	ErrDuplicateModel = errors.New("duplicate model id")
	ErrUnknownTask    = errors.New("unknown task type")
	ErrEmptyTOC       = errors.New("table of contents has no usable entries")
	ErrNotFound       = errors.New("not found")
)
