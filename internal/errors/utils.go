package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating an ArborError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *ArborError {
	if err == nil {
		return nil
	}

	// Keep the location of an inner ArborError so the outer message still points at the source
	var ae *ArborError
	if errors.As(err, &ae) {
		return &ArborError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       ae,
			Context:     copyContext(ae.Context),
			Component:   ae.Component,
			FilePath:    ae.FilePath,
			Line:        ae.Line,
			Column:      ae.Column,
			Recoverable: ae.Recoverable,
		}
	}

	return &ArborError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation,
	}
}

func copyContext(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *ArborError {
	wrapped := Wrap(err, ErrorTypeIO, code, message)
	if wrapped != nil {
		wrapped.Recoverable = false
	}
	return wrapped
}

// WrapTarget wraps an error raised while writing the build output
func WrapTarget(err error, code, message, file string) *ArborError {
	wrapped := Wrap(err, ErrorTypeTarget, code, message)
	if wrapped != nil {
		wrapped.FilePath = file
		wrapped.Recoverable = false
	}
	return wrapped
}

// GetRootCause returns the innermost error in the chain
func GetRootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// ExtractContext collects context values from the whole chain, outer values winning
func ExtractContext(err error) map[string]interface{} {
	result := make(map[string]interface{})
	var chain []*ArborError
	for err != nil {
		var ae *ArborError
		if !errors.As(err, &ae) {
			break
		}
		chain = append(chain, ae)
		err = ae.Cause
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].Context {
			result[k] = v
		}
	}
	return result
}
