package onboarding

import (
	"errors"
	"fmt"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/identity"
)

// Kind classifies an onboarding failure for callers.
type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindEmailAlreadyInUse    Kind = "email_already_in_use"
	KindWeakSecret           Kind = "weak_secret"
	KindInvalidEmail         Kind = "invalid_email"
	KindSlugResolutionFailed Kind = "slug_resolution_failed"
	KindWriteFailed          Kind = "write_failed"
	KindUnknown              Kind = "unknown"
)

// Stage names the workflow transition that was being attempted.
type Stage string

const (
	StageValidate       Stage = "validate"
	StageResolveSlug    Stage = "resolve_slug"
	StageProvisionAdmin Stage = "provision_identity"
	StageWriteTenant    Stage = "write_tenant"
	StageWriteAdmin     Stage = "write_admin"
)

// State is the last state the workflow reached.
type State string

const (
	StateStart               State = "start"
	StateSlugResolved        State = "slug_resolved"
	StateIdentityProvisioned State = "identity_provisioned"
	StateTenantWritten       State = "tenant_written"
	StateAdminWritten        State = "admin_written"
)

const (
	msgEmailInUse   = "This email address is already registered. Please use a different email or try logging in."
	msgWeakSecret   = "Password is too weak. Please choose a stronger password."
	msgInvalidEmail = "Please enter a valid email address."
	msgGeneric      = "Failed to create account. Please try again later."
)

// Error is returned by Provision for every failure. Message is safe to show
// to the person filling in the form; Error() is meant for logs. Reached tells
// which artifacts may already exist.
type Error struct {
	Kind    Kind
	Stage   Stage
	Reached State
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("onboarding %s: %s: %s", e.Stage, e.Kind, e.Message)
	}
	return fmt.Sprintf("onboarding %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindUnknown
}

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Stage: StageValidate, Reached: StateStart, Message: msg}
}

func failure(kind Kind, stage Stage, reached State, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Reached: reached, Message: msgGeneric, Err: err}
}

// identityError maps a provisioning error to its kind and user message.
func identityError(err error) *Error {
	e := failure(KindUnknown, StageProvisionAdmin, StateSlugResolved, err)
	switch {
	case errors.Is(err, identity.ErrEmailAlreadyInUse):
		e.Kind, e.Message = KindEmailAlreadyInUse, msgEmailInUse
	case errors.Is(err, identity.ErrWeakSecret):
		e.Kind, e.Message = KindWeakSecret, msgWeakSecret
	case errors.Is(err, identity.ErrInvalidEmail):
		e.Kind, e.Message = KindInvalidEmail, msgInvalidEmail
	}
	return e
}
