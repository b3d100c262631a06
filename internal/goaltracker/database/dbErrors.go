package database

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrUserAlreadyExist = errors.New("user already exist")
var ErrUserNotExist = errors.New("user not exist")
var ErrGoalNotExist = errors.New("goal not exist")
var ErrGoalNotActive = errors.New("goal is not active")
var ErrGroupNotExist = errors.New("group not exist")
var ErrMemberAlreadyExist = errors.New("member already exist")
var ErrMemberNotExist = errors.New("member not exist")
var ErrItemNotExist = errors.New("marketplace item not exist")

// ErrTransient marks store failures after which the whole transaction may be
// retried: nothing it wrote is visible.
var ErrTransient = errors.New("transient storage failure")

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return "transient: " + e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

func (e *transientError) Is(target error) bool {
	return target == ErrTransient
}

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateForeignKeyViolation  = "23503"
)

func classify(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return Transient(err)
		}
		return err
	}
	if pgconn.SafeToRetry(err) {
		return Transient(err)
	}
	return err
}
