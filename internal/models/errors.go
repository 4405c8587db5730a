package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned by the ledger service for unknown ids.
	ErrNotFound = errors.New("not found")
	// ErrRejected is returned by the ledger service when it refuses a
	// mutation on its own rules.
	ErrRejected = errors.New("rejected by ledger service")
	// ErrLocked is returned when another session is modifying the refund.
	ErrLocked = errors.New("refund is being modified by another session")
)

// Violations maps a field name to the rule it broke.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// ValidationError is a fee or remark constraint violation caught locally.
type ValidationError struct {
	Op     string
	Fields Violations
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: invalid input (%s)", e.Op, strings.Join(parts, ", "))
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(op, field, rule string) *ValidationError {
	return &ValidationError{Op: op, Fields: Violations{field: rule}}
}

// MissingRemarkError is returned when a role must explain an edit or a rejection.
type MissingRemarkError struct {
	Role Role
	// PaymentID names the offending refund line; zero when the remark is
	// required at request level.
	PaymentID int64
	Reason    string
}

func (e *MissingRemarkError) Error() string {
	if e.PaymentID != 0 {
		return fmt.Sprintf("missing %s remark on refund line for payment %d: %s", strings.ToLower(string(e.Role)), e.PaymentID, e.Reason)
	}
	return fmt.Sprintf("missing %s remark: %s", strings.ToLower(string(e.Role)), e.Reason)
}

// TransitionRefusedError is returned when a workflow guard fails.
type TransitionRefusedError struct {
	From   RefundStatus
	Action string
	Reason string
}

func (e *TransitionRefusedError) Error() string {
	return fmt.Sprintf("%s refused in state %s: %s", e.Action, e.From, e.Reason)
}

// RemoteFailure wraps a negative answer or a transport error from the ledger service.
type RemoteFailure struct {
	Op      string
	Message string
	// Unknown is set when the call failed in transport and the outcome on the
	// service side cannot be known.
	Unknown bool
	Err     error
}

func (e *RemoteFailure) Error() string {
	if e.Unknown {
		return fmt.Sprintf("%s: remote call failed, outcome unknown: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: rejected by ledger service: %s", e.Op, e.Message)
}

func (e *RemoteFailure) Unwrap() error { return e.Err }

// IsBusinessRule reports whether err is a local rule rejection, as opposed to
// a remote failure.
func IsBusinessRule(err error) bool {
	var ve *ValidationError
	var me *MissingRemarkError
	var te *TransitionRefusedError
	return errors.As(err, &ve) || errors.As(err, &me) || errors.As(err, &te)
}

// IsRemoteFailure reports whether err came from the ledger service.
func IsRemoteFailure(err error) bool {
	var rf *RemoteFailure
	return errors.As(err, &rf)
}
