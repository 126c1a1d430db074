package main

import (
	"errors"
	"flag"
	"fmt"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/ports"
)

const (
	exitOK       = 0
	exitInput    = 1
	exitStorage  = 2
	exitProvider = 3
)

// exitError pins an error to an exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &exitError{code: exitInput, err: fmt.Errorf(format, args...)}
}

func inputError(err error) error { return &exitError{code: exitInput, err: err} }

func providerError(err error) error { return &exitError{code: exitProvider, err: err} }

// exitCode classifies err. Anything not recognised as a caller or provider
// problem is treated as a storage failure.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	switch {
	case errors.Is(err, flag.ErrHelp),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		domain.IsTimeParseError(err):
		return exitInput
	case errors.Is(err, ports.ErrProviderUnavailable):
		return exitProvider
	default:
		return exitStorage
	}
}
