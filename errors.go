package runview

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownNamespace indicates a namespace or key prefix that was never registered.
	ErrUnknownNamespace = errors.New("runview: unknown namespace")
	// ErrInvalidNativeID indicates an identifier that does not fit its namespace.
	ErrInvalidNativeID = errors.New("runview: invalid native id")
	// ErrPrefixConflict indicates two namespaces whose prefixes could collide.
	ErrPrefixConflict = errors.New("runview: namespace prefix conflict")
	// ErrDuplicateNamespace indicates a namespace registered twice.
	ErrDuplicateNamespace = errors.New("runview: namespace already registered")
	// ErrInvalidSettings marks settings rejected by strict validation.
	ErrInvalidSettings = errors.New("runview: invalid table settings")
)

// CodecError captures the operation and input that failed to encode or decode.
type CodecError struct {
	Op        string
	Input     string
	Namespace Namespace
	Err       error
}

func (e *CodecError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Namespace != "" {
		return fmt.Sprintf("runview: %s %q namespace=%s: %v", e.Op, e.Input, e.Namespace, e.Err)
	}
	return fmt.Sprintf("runview: %s %q: %v", e.Op, e.Input, e.Err)
}

func (e *CodecError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError lists every problem found in a settings value.
type ValidationError struct {
	Namespace Namespace
	Problems  []string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("runview: invalid settings for %s: %s", e.Namespace, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidSettings
}

func codecError(op, input string, ns Namespace, err error) error {
	if err == nil {
		return nil
	}
	var existing *CodecError
	if errors.As(err, &existing) {
		return err
	}
	return &CodecError{Op: op, Input: input, Namespace: ns, Err: err}
}
