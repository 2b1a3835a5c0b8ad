package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"dentaldir/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "regen", "complete", "ai request failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"regen", "complete", "ai request failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"nil", nil, ""},
		{"validation", services.Wrap(services.ErrValidation, "api", "decode", "bad body", nil), services.KindInput},
		{"configuration", services.Wrap(services.ErrConfiguration, "llm", "init", "no key", nil), services.KindInput},
		{"not found", fmt.Errorf("load: %w", services.ErrNotFound), services.KindMissing},
		{"timeout", services.Wrap(services.ErrTimeout, "llm", "complete", "deadline", nil), services.KindTransient},
		{"upstream", services.Wrap(services.ErrExternalTool, "llm", "complete", "500", nil), services.KindUpstream},
		{"plain", errors.New("disk full"), services.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Classify(tt.err); got != tt.want {
				t.Fatalf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}
