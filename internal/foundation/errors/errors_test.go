package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "assetbuilder.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if !err.IsFatal() {
			t.Error("expected fatal severity")
		}
		file, exists := err.Context().GetString("file")
		if !exists || file != "assetbuilder.yaml" {
			t.Errorf("expected context file=assetbuilder.yaml, got %v", file)
		}
	})

	t.Run("Chain detection", func(t *testing.T) {
		cause := errors.New("unexpected token")
		err := WrapError(cause, CategoryTransform, "compile stylesheet").
			WithContext("path", "less/style.less").
			Build()
		wrapped := fmt.Errorf("stage styles: %w", err)

		if !IsClassified(wrapped) {
			t.Fatal("expected wrapped error to be classified")
		}
		if !HasCategory(wrapped, CategoryTransform) {
			t.Error("expected transform category through wrapping")
		}
		if !errors.Is(wrapped, cause) {
			t.Error("expected chain to reach original cause")
		}
		if GetSeverity(wrapped) != SeverityFatal {
			t.Errorf("expected fatal severity, got %s", GetSeverity(wrapped))
		}
	})

	t.Run("Unclassified defaults", func(t *testing.T) {
		err := errors.New("plain")
		if GetCategory(err) != CategoryInternal {
			t.Errorf("expected internal category, got %s", GetCategory(err))
		}
		if GetSeverity(err) != SeverityError {
			t.Errorf("expected error severity, got %s", GetSeverity(err))
		}
	})

	t.Run("Stable message", func(t *testing.T) {
		err := FileSystemError("write output").
			WithContext("path", "build/css").
			WithContext("mode", "0644").
			Build()
		want := "[filesystem] write output (mode=0644, path=build/css)"
		if err.Error() != want {
			t.Errorf("got %q, want %q", err.Error(), want)
		}
	})

	t.Run("WithContext copies", func(t *testing.T) {
		base := ValidationError("bad port").Build()
		derived := base.WithContext("port", 0)
		if _, ok := base.Context().Get("port"); ok {
			t.Error("expected base context untouched")
		}
		if v, ok := derived.Context().Get("port"); !ok || v != 0 {
			t.Errorf("expected derived port context, got %v", v)
		}
		if !errors.Is(derived, base) {
			t.Error("expected derived to match base by category and message")
		}
	})
}

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation", ValidationError("invalid input").Build(), 2},
		{"config", ConfigError("bad config").Build(), 7},
		{"filesystem", FileSystemError("read failed").Build(), 11},
		{"transform", TransformError("bad less").Build(), 11},
		{"wrapped transform", fmt.Errorf("run: %w", TransformError("bad js").Build()), 11},
		{"server", ServerError("listen").Build(), 12},
		{"internal", InternalError("bug").Build(), 10},
		{"unclassified", errors.New("unknown"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logs, out bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(WrapError(errors.New("EACCES"), CategoryFileSystem, "write output").
		WithContext("path", "build/js/script.js").
		Build())

	if code != 11 {
		t.Fatalf("expected exit 11, got %d", code)
	}
	if got := out.String(); got != "Error: write output: EACCES\n" {
		t.Fatalf("unexpected user output %q", got)
	}
	if !strings.Contains(logs.String(), "path=build/js/script.js") {
		t.Fatalf("expected context in log output, got %q", logs.String())
	}
}
