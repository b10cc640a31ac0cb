package ledger

import "errors"

// Kind classifies a ledger failure. Every failure is terminal for the call
// that produced it; no state is changed when an error is returned.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindAccessDenied
	KindNotFound
	KindAlreadyExists
	KindInvalidArgument
	KindInactiveAccount
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindAccessDenied:
		return "access_denied"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInactiveAccount:
		return "inactive_account"
	default:
		return "unknown"
	}
}

// Error is a ledger failure with a kind and a human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

// Is lets errors.Is match a sentinel against its kind, e.g.
// errors.Is(ErrAlreadyAuthorized, ErrKindAlreadyExists).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if e == t {
		return true
	}
	return t.Reason == "" && t.Kind == e.Kind
}

// Kind sentinels, usable with errors.Is to match any error of that kind.
var (
	ErrKindUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrKindAccessDenied    = &Error{Kind: KindAccessDenied}
	ErrKindNotFound        = &Error{Kind: KindNotFound}
	ErrKindAlreadyExists   = &Error{Kind: KindAlreadyExists}
	ErrKindInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrKindInactiveAccount = &Error{Kind: KindInactiveAccount}
)

var (
	ErrNotAdmin          = &Error{Kind: KindUnauthorized, Reason: "only the admin can perform this action"}
	ErrNotVerifiedDoctor = &Error{Kind: KindUnauthorized, Reason: "caller is not a verified doctor"}
	ErrAccessDenied      = &Error{Kind: KindAccessDenied, Reason: "access denied"}
	ErrPatientNotFound   = &Error{Kind: KindNotFound, Reason: "patient not registered"}
	ErrNotRegistered     = &Error{Kind: KindNotFound, Reason: "principal not registered"}
	ErrAlreadyRegistered = &Error{Kind: KindAlreadyExists, Reason: "already registered"}
	ErrAlreadyAuthorized = &Error{Kind: KindAlreadyExists, Reason: "already authorized"}
	ErrInvalidBirthYear  = &Error{Kind: KindInvalidArgument, Reason: "invalid birth year"}
	ErrInvalidPrincipal  = &Error{Kind: KindInvalidArgument, Reason: "invalid principal"}
	ErrInactiveAccount   = &Error{Kind: KindInactiveAccount, Reason: "patient account is not active"}
)

// KindOf returns the kind of a ledger error, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
