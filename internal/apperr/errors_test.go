package apperr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := New(KindNotFound, "workspace %q not found", "p")
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is to match ErrNotFound")
	}
	if errors.Is(err, ErrAlreadyExists) {
		t.Error("kind mismatch should not match")
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("expected match through fmt wrapping")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(KindUnexpected, fs.ErrPermission, "write %s", "x")
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("cause should be reachable")
	}
	if err.Error() != "write x: "+fs.ErrPermission.Error() {
		t.Errorf("message = %q", err.Error())
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != "" {
		t.Error("nil error should have no kind")
	}
	if KindOf(errors.New("boom")) != KindUnexpected {
		t.Error("plain errors are Unexpected")
	}
	if KindOf(New(KindInvalidName, "bad")) != KindInvalidName {
		t.Error("kind not reported")
	}
}

func TestUnexpectedPassesThroughClassified(t *testing.T) {
	orig := New(KindCorruptMetadata, "bad json")
	if got := Unexpected(fmt.Errorf("ctx: %w", orig)); got != orig {
		t.Errorf("Unexpected re-wrapped a classified error: %v", got)
	}
	if Unexpected(nil) != nil {
		t.Error("Unexpected(nil) should be nil")
	}
}

func TestSentinelMessage(t *testing.T) {
	if ErrUnknownTool.Error() != "UnknownTool" {
		t.Errorf("sentinel message = %q", ErrUnknownTool.Error())
	}
}
