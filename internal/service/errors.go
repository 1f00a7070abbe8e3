package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not_found")
	ErrValidation = errors.New("validation")
	ErrConflict   = errors.New("conflict")
)

// DomainError is a precondition failure with a message meant for the
// client verbatim.
type DomainError struct {
	Msg string
}

func (e *DomainError) Error() string { return e.Msg }

func errLogisticAdded(addr string) *DomainError {
	return &DomainError{Msg: fmt.Sprintf("Logistic %s already added", addr)}
}

func errLogisticNotFound(addr string) *DomainError {
	return &DomainError{Msg: fmt.Sprintf("Logistic %s not found", addr)}
}
