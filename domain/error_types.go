package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for retry and exit-code policy
type ErrorKind string

const (
	ErrKindUsage              ErrorKind = "usage"
	ErrKindConfiguration      ErrorKind = "configuration"
	ErrKindValidation         ErrorKind = "validation"
	ErrKindAdapterTransient   ErrorKind = "adapter_transient"
	ErrKindAdapterPermanent   ErrorKind = "adapter_permanent"
	ErrKindPropagationPending ErrorKind = "propagation_pending"
	ErrKindRollbackUnsupported ErrorKind = "rollback_unsupported"
	ErrKindRollbackFailed     ErrorKind = "rollback_failed"
)

// FailureCode is the operation-level failure mode reported by adapters
type FailureCode string

const (
	CodeToolMissing       FailureCode = "tool_missing"
	CodeAuthUnavailable   FailureCode = "auth_unavailable"
	CodeManifestMissing   FailureCode = "manifest_missing"
	CodeManifestMalformed FailureCode = "manifest_malformed"
	CodeVersionConflict   FailureCode = "version_conflict"
	CodeBuildFailed       FailureCode = "build_failed"
	CodeTestsFailed       FailureCode = "tests_failed"
	CodeRejected          FailureCode = "rejected"
	CodeTransient         FailureCode = "transient"
	CodeConflict          FailureCode = "conflict"
	CodeNotYet            FailureCode = "not_yet"
	CodeNotFound          FailureCode = "not_found"
	CodeMismatch          FailureCode = "mismatch"
	CodeNotSupported      FailureCode = "not_supported"
	CodeManualOnly        FailureCode = "manual_only"
	CodeRollbackFailed    FailureCode = "rollback_failed"
)

// DeployError is the error type carried through the pipeline. It keeps the
// classification needed for retry decisions and exit codes.
type DeployError struct {
	Kind     ErrorKind
	Code     FailureCode
	Platform string
	Op       string
	Message  string
	Err      error
}

// Error implements the error interface
func (e *DeployError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Platform != "" && e.Op != "" {
		return fmt.Sprintf("%s %s: %s", e.Platform, e.Op, msg)
	}
	if e.Platform != "" {
		return fmt.Sprintf("%s: %s", e.Platform, msg)
	}
	return msg
}

// Unwrap returns the wrapped error
func (e *DeployError) Unwrap() error {
	return e.Err
}

// NewUsageError creates a usage error (exit code 2, never retried)
func NewUsageError(msg string) *DeployError {
	return &DeployError{Kind: ErrKindUsage, Message: msg}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(msg string, err error) *DeployError {
	return &DeployError{Kind: ErrKindConfiguration, Message: msg, Err: err}
}

// NewValidationError creates a pre-deploy validation error
func NewValidationError(msg string) *DeployError {
	return &DeployError{Kind: ErrKindValidation, Message: msg}
}

// NewAdapterError creates an adapter failure with explicit code classification
func NewAdapterError(platform, op string, code FailureCode, msg string, err error) *DeployError {
	return &DeployError{
		Kind:     kindForCode(code),
		Code:     code,
		Platform: platform,
		Op:       op,
		Message:  msg,
		Err:      err,
	}
}

func kindForCode(code FailureCode) ErrorKind {
	switch code {
	case CodeToolMissing, CodeAuthUnavailable:
		return ErrKindConfiguration
	case CodeManifestMissing, CodeManifestMalformed, CodeVersionConflict:
		return ErrKindValidation
	case CodeTransient:
		return ErrKindAdapterTransient
	case CodeNotYet:
		return ErrKindPropagationPending
	case CodeNotSupported, CodeManualOnly:
		return ErrKindRollbackUnsupported
	case CodeRollbackFailed:
		return ErrKindRollbackFailed
	default:
		return ErrKindAdapterPermanent
	}
}

// KindOf returns the error kind, defaulting to adapter_permanent for plain errors
func KindOf(err error) ErrorKind {
	var de *DeployError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrKindAdapterPermanent
}

// CodeOf returns the failure code of an error, if any
func CodeOf(err error) FailureCode {
	var de *DeployError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRetryable reports whether the deploy retry schedule applies
func IsRetryable(err error) bool {
	return KindOf(err) == ErrKindAdapterTransient
}

// IsPropagationPending reports whether verify backoff applies
func IsPropagationPending(err error) bool {
	return KindOf(err) == ErrKindPropagationPending
}

// ExitCode maps an error to the command exit code contract:
// usage errors exit 2, everything else exits 1
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if KindOf(err) == ErrKindUsage {
		return 2
	}
	return 1
}
