package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sifan077/LinkPulse/internal/app/repository"
)

// Kind classifies failures so callers can branch without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAlreadyExists
	KindForbidden
	KindInvalid
	KindStorageUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindForbidden:
		return "forbidden"
	case KindInvalid:
		return "invalid"
	case KindStorageUnavailable:
		return "storage unavailable"
	default:
		return "unknown"
	}
}

// Error carries a Kind together with the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match an *Error against the Err* sentinels by kind.
func (e *Error) Is(target error) bool {
	s, ok := target.(sentinel)
	return ok && e.Kind == Kind(s)
}

type sentinel Kind

func (s sentinel) Error() string { return Kind(s).String() }

var (
	ErrNotFound           error = sentinel(KindNotFound)
	ErrAlreadyExists      error = sentinel(KindAlreadyExists)
	ErrForbidden          error = sentinel(KindForbidden)
	ErrInvalid            error = sentinel(KindInvalid)
	ErrStorageUnavailable error = sentinel(KindStorageUnavailable)
)

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// fromRepository maps repository sentinels onto kinds. Anything the
// repository did not classify is treated as the store being unavailable.
func fromRepository(op string, err error) *Error {
	switch {
	case errors.Is(err, repository.ErrLinkNotFound):
		return newError(KindNotFound, op, err)
	case errors.Is(err, repository.ErrSlugTaken):
		return newError(KindAlreadyExists, op, err)
	case errors.Is(err, context.Canceled):
		return newError(KindUnknown, op, err)
	default:
		return newError(KindStorageUnavailable, op, err)
	}
}
