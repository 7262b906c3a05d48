package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	e := &Error{Code: "TEST", Message: "boom"}
	if e.Error() != "[TEST] boom" {
		t.Errorf("Error() = %q", e.Error())
	}

	wrapped := WrapError(e, fmt.Errorf("cause"))
	if wrapped.Error() != "[TEST] boom: cause" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	wrapped := WrapError(ErrInsufficientHistory, fmt.Errorf("3 < 10"))

	if !errors.Is(wrapped, ErrInsufficientHistory) {
		t.Error("wrapped error should match its base by code")
	}
	if errors.Is(wrapped, ErrPolicyInfeasible) {
		t.Error("wrapped error should not match a different code")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	wrapped := WrapError(ErrConstraintViolation, cause)

	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should find the cause via Unwrap")
	}
}
