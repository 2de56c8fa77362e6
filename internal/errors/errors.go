package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ManifestErrorKind classifies fatal manifest problems detected before any
// remote call is made.
type ManifestErrorKind string

const (
	ManifestDuplicateIdentity  ManifestErrorKind = "duplicate-identity"
	ManifestUnresolvedRef      ManifestErrorKind = "unresolved-reference"
	ManifestDependencyCycle    ManifestErrorKind = "dependency-cycle"
	ManifestInvalidDocument    ManifestErrorKind = "invalid-document"
	ManifestUnsupportedKind    ManifestErrorKind = "unsupported-kind"
)

// ManifestError represents a fatal problem with the declared resource set.
// Manifest errors abort the whole run with no side effects.
type ManifestError struct {
	Kind       ManifestErrorKind
	Identity   string
	Cycle      []string // populated for ManifestDependencyCycle, in walk order
	Message    string
	Suggestion string
}

func (e ManifestError) Error() string {
	msg := fmt.Sprintf("Manifest error (%s)", e.Kind)
	if e.Identity != "" {
		msg += fmt.Sprintf(" for resource '%s'", e.Identity)
	}
	if len(e.Cycle) > 0 {
		msg += ": cycle " + strings.Join(e.Cycle, " -> ")
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

// VersionMismatchError is raised when the declared version of a secret-bearing
// resource is lower than the version recorded in its remote snapshot.
// Downgrades are rejected, never silently ignored.
type VersionMismatchError struct {
	Identity        string
	DeclaredVersion int
	RemoteVersion   int
}

func (e VersionMismatchError) Error() string {
	return fmt.Sprintf(
		"Resource '%s' version mismatch: declared version %d is lower than the applied version %d."+
			"\n  💡 Keep version %d to leave the secret untouched or bump to %d to regenerate it",
		e.Identity, e.DeclaredVersion, e.RemoteVersion, e.RemoteVersion, e.RemoteVersion+1,
	)
}

// GatewayCause classifies remote failures by their HTTP-derived cause.
type GatewayCause string

const (
	CauseUnauthorized GatewayCause = "unauthorized"
	CauseForbidden    GatewayCause = "forbidden"
	CauseNotFound     GatewayCause = "not-found"
	CauseConflict     GatewayCause = "conflict"
	CauseUnavailable  GatewayCause = "unavailable"
	CauseUnknown      GatewayCause = "unknown"
)

// GatewayError wraps a failed remote operation. The cause is surfaced to the
// reconciler verbatim; nothing downstream reinterprets it.
type GatewayError struct {
	Operation string // e.g. "fetch", "create", "update"
	Identity  string
	Cause     GatewayCause
	Err       error
}

func (e GatewayError) Error() string {
	msg := fmt.Sprintf("Vault %s failed for '%s' (%s)", e.Operation, e.Identity, e.Cause)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e GatewayError) Unwrap() error {
	return e.Err
}

// BlockedError marks a resource that was never attempted because one of its
// dependencies failed first.
type BlockedError struct {
	Identity   string
	BlockedBy  string
	underlying error
}

// Blocked builds a BlockedError for a dependent of a failed resource.
func Blocked(identity, blockedBy string, cause error) BlockedError {
	return BlockedError{Identity: identity, BlockedBy: blockedBy, underlying: cause}
}

func (e BlockedError) Error() string {
	return fmt.Sprintf("Resource '%s' blocked by dependency '%s'", e.Identity, e.BlockedBy)
}

func (e BlockedError) Unwrap() error {
	return e.underlying
}

// ErrCancelled terminates resources that were still pending when the run was
// interrupted.
var ErrCancelled = errors.New("apply run cancelled")

// CauseFromStatus maps an HTTP status code to a gateway cause.
func CauseFromStatus(status int) GatewayCause {
	switch status {
	case 401:
		return CauseUnauthorized
	case 403:
		return CauseForbidden
	case 404:
		return CauseNotFound
	case 400, 409:
		return CauseConflict
	case 500, 502, 503, 504:
		return CauseUnavailable
	default:
		return CauseUnknown
	}
}

// IsNotFound reports whether err is a gateway error with a not-found cause.
func IsNotFound(err error) bool {
	var ge GatewayError
	return errors.As(err, &ge) && ge.Cause == CauseNotFound
}

// IsManifestError reports whether err originated in manifest validation.
func IsManifestError(err error) bool {
	var me ManifestError
	return errors.As(err, &me)
}
