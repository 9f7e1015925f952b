package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "unit not found")
		if err.Error() != "[NOT_FOUND] unit not found" {
			t.Errorf("expected [NOT_FOUND] unit not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		expected := "[INTERNAL_ERROR] internal failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeConfiguration, "undefined layer")
		if !IsCode(err, CodeConfiguration) {
			t.Error("expected IsCode to return true for CodeConfiguration")
		}
		if IsCode(err, CodeTimeout) {
			t.Error("expected IsCode to return false for CodeTimeout")
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("load rules: %w", New(CodeConfiguration, "bad pattern"))
		if !IsCode(err, CodeConfiguration) {
			t.Error("expected IsCode to see through fmt wrapping")
		}
		if CodeOf(err) != CodeConfiguration {
			t.Errorf("expected CodeOf to return CONFIGURATION_ERROR, got %s", CodeOf(err))
		}
	})

	t.Run("ContextIsSorted", func(t *testing.T) {
		err := New(CodeConfiguration, "bad rule")
		err = AddContext(err, CtxRule, "layers")
		err = AddContext(err, CtxLayer, "web")
		expected := "[CONFIGURATION_ERROR] bad rule (layer=web rule=layers)"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("AddContextForeign", func(t *testing.T) {
		err := AddContext(errors.New("boom"), CtxPath, "facts.jsonl")
		if CodeOf(err) != CodeInternal {
			t.Errorf("expected internal code, got %s", CodeOf(err))
		}
		if AddContext(nil, CtxPath, "x") != nil {
			t.Error("expected nil passthrough")
		}
	})
}
