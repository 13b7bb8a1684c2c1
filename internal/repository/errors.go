package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrMissingColumn is returned when a form table lacks a required column
	ErrMissingColumn = errors.New("missing column")

	// ErrInvalidValue is returned when a form cell cannot be parsed
	ErrInvalidValue = errors.New("invalid value")

	// ErrInvalidInput is returned when a source is misconfigured
	ErrInvalidInput = errors.New("invalid input")
)
