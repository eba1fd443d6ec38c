package service

import (
	"errors"
	"fmt"
)

var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyCanceled    = errors.New("membership is already canceled")
	ErrInvalidEventData   = errors.New("invalid billing event data")
)

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// HandlerResult is what every billing event handler returns instead of an error.
// Only failed + retryable results should make the provider redeliver.
type HandlerResult struct {
	Handler   string
	Outcome   Outcome
	Retryable bool
	Err       error
}

func (r HandlerResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}

func (r HandlerResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", r.Handler, r.Outcome, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Handler, r.Outcome)
}

func applied(handler string) HandlerResult {
	return HandlerResult{Handler: handler, Outcome: OutcomeApplied}
}

func skipped(handler string, reason error) HandlerResult {
	return HandlerResult{Handler: handler, Outcome: OutcomeSkipped, Err: reason}
}

func failed(handler string, err error, retryable bool) HandlerResult {
	return HandlerResult{Handler: handler, Outcome: OutcomeFailed, Retryable: retryable, Err: err}
}
