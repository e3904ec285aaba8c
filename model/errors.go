package model

import (
	"errors"
	"fmt"

	"xdao.co/commons/snapshot"
	"xdao.co/commons/storage"
	"xdao.co/commons/workspace"
)

type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrInvalidCID     ErrorCode = "INVALID_CID"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrCIDMismatch    ErrorCode = "CID_MISMATCH"
	ErrCorrupt        ErrorCode = "CORRUPT_SNAPSHOT"
	ErrVerification   ErrorCode = "VERIFICATION"
	ErrInternal       ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human message.
// Rule carries the workspace rule code (e.g. WS-DISC-002) when one applies.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Rule    string    `json:"rule,omitempty"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Rule != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Rule, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// FromError maps workspace and storage errors onto boundary codes.
func FromError(err error) *CodedError {
	if err == nil {
		return nil
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded
	}
	out := &CodedError{Code: ErrInternal, Rule: workspace.Code(err), Message: err.Error()}
	switch {
	case workspace.IsKind(err, workspace.KindValidation):
		out.Code = ErrInvalidRequest
	case workspace.IsKind(err, workspace.KindNotFound), errors.Is(err, storage.ErrNotFound):
		out.Code = ErrNotFound
	case workspace.IsKind(err, workspace.KindVerification):
		out.Code = ErrVerification
	case errors.Is(err, storage.ErrInvalidCID), errors.Is(err, storage.ErrInvalidHead):
		out.Code = ErrInvalidCID
	case errors.Is(err, storage.ErrCIDMismatch), errors.Is(err, storage.ErrImmutable):
		out.Code = ErrCIDMismatch
	case errors.Is(err, snapshot.ErrCorrupt):
		out.Code = ErrCorrupt
	}
	return out
}
