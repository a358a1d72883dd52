// Package fault carries the tagged error chain shared by the graph packages.
package fault

import (
	"errors"
	"fmt"
)

// Kind names the subsystem that produced an error.
type Kind string

const (
	NodeCreate        Kind = "NODE_CREATE_ERROR"
	NodeAddRemove     Kind = "NODE_ADD_REMOVE_ERROR"
	NodeClone         Kind = "NODE_CLONE_ERROR"
	NodeValidation    Kind = "NODE_VALIDATION_ERROR"
	ModelCreate       Kind = "MODEL_CREATE_ERROR"
	ModelSerialize    Kind = "MODEL_SERIALIZE_ERROR"
	ModelParse        Kind = "MODEL_PARSE_ERROR"
	ModelClone        Kind = "MODEL_CLONE_ERROR"
	ModelValidation   Kind = "MODEL_VALIDATION_ERROR"
	ModelSplitLayers  Kind = "MODEL_SPLIT_TO_LAYERS_ERROR"
	UnitCreate        Kind = "UNIT_CREATE_ERROR"
	UnitValidation    Kind = "UNIT_VALIDATION_ERROR"
	Compile           Kind = "COMPILE_ERROR"
	ActivationVerify  Kind = "ACTIVATION_VALIDATION_ERROR"
	ActivationCompile Kind = "ACTIVATION_COMPILE_ERROR"
	OptimizerVerify   Kind = "OPTIMIZER_VALIDATE_ERROR"
	OptimizerCompile  Kind = "OPTIMIZER_COMPILE_ERROR"
)

// Error is a kind-tagged error with an optional inner cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports a match when target is a *Error of the same kind with either an
// empty message or the same message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags cause with kind. A nil cause yields nil.
func Wrap(kind Kind, cause error, message string) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Wrapf(kind Kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Of matches any error of the given kind in a chain.
func Of(kind Kind) error {
	return &Error{Kind: kind}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
