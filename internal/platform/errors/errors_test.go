package errors

import (
	stderrs "errors"
	"fmt"
	"testing"
)

func TestKindString(t *testing.T) {
	cases := []struct {
		k    Kind
		want string
	}{
		{KindTransient, "transient"},
		{KindPermanent, "permanent"},
		{KindEmptyHour, "empty_hour"},
		{KindCorrupt, "corrupt"},
		{KindOrderViolation, "order_violation"},
		{KindIO, "io"},
		{KindControlConflict, "control_conflict"},
		{KindUnknown, "unknown"},
		{Kind(99), "unknown"},
	}
	for _, c := range cases {
		if got := c.k.String(); got != c.want {
			t.Fatalf("Kind(%d).String() = %q, want %q", c.k, got, c.want)
		}
	}
}

func TestErrorTypeAndMethods(t *testing.T) {
	var e *Error
	if e.Error() != "<nil>" {
		t.Fatalf("nil *Error render = %q, want <nil>", e.Error())
	}

	e1 := New(KindCorrupt, "bad stuff")
	if KindOf(e1) != KindCorrupt {
		t.Fatalf("KindOf(New) = %v", KindOf(e1))
	}
	e2 := Newf(KindIO, "write failed after %d bytes", 12)
	if got := e2.Error(); got != "write failed after 12 bytes" {
		t.Fatalf("Newf().Error = %q", got)
	}

	src := stderrs.New("root")
	e3 := Wrap(src, KindIO, "state write failed")
	if u := stderrs.Unwrap(e3); u == nil || u.Error() != "root" {
		t.Fatalf("Wrap did not keep orig")
	}
	if KindOf(e3) != KindIO {
		t.Fatalf("KindOf(Wrap) = %v", KindOf(e3))
	}
	e4 := Wrapf(src, KindTransient, "fetch failed %s", "here")
	if want := "fetch failed here: root"; e4.Error() != want {
		t.Fatalf("Wrapf().Error = %q, want %q", e4.Error(), want)
	}

	if got, ok := As(e4); !ok || got.Kind() != KindTransient {
		t.Fatalf("As() failed for our error")
	}
	if _, ok := As(src); ok {
		t.Fatalf("As() true for foreign error")
	}

	e5 := Wrap(src, KindPermanent, "bad url")
	e6 := WithOp(e5, "fetch eurusd 2024-01-07T10")
	if oe, ok := As(e6); !ok || oe.Op() != "fetch eurusd 2024-01-07T10" {
		t.Fatalf("WithOp failed")
	}
	if oe0, _ := As(e5); oe0.Op() != "" {
		t.Fatalf("WithOp mutated original (copy-on-write broken)")
	}

	wrapped := WithOp(src, "decompress")
	we, ok := As(wrapped)
	if !ok || we.Op() != "decompress" || we.Kind() != KindUnknown {
		t.Fatalf("WithOp on foreign error failed: %+v", we)
	}

	if WithOp(nil, "x") != nil {
		t.Fatalf("WithOp(nil) should return nil")
	}

	if !Is(Transientf("x"), KindTransient) ||
		!Is(Permanentf("x"), KindPermanent) ||
		!Is(Corruptf("x"), KindCorrupt) ||
		!Is(OrderViolationf("x"), KindOrderViolation) ||
		!Is(IOf("x"), KindIO) ||
		!Is(ControlConflictf("x"), KindControlConflict) {
		t.Fatalf("sugar helpers kind mismatch")
	}

	if WrapIf(nil, KindIO, "ignored") != nil {
		t.Fatalf("WrapIf(nil) should return nil")
	}
	if WrapIf(src, KindIO, "db") == nil {
		t.Fatalf("WrapIf(non-nil) should wrap")
	}

	deep := fmt.Errorf("level2: %w", fmt.Errorf("level1: %w", src))
	if got := Root(deep); got == nil || got.Error() != "root" {
		t.Fatalf("Root() failed, got %v", got)
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Transientf("timeout")) {
		t.Fatalf("transient error should be retryable")
	}
	if Retryable(Permanentf("bad config")) {
		t.Fatalf("permanent error should not be retryable")
	}
	if Retryable(Corruptf("bad record")) {
		t.Fatalf("corrupt error should not be retryable")
	}
	if Retryable(nil) {
		t.Fatalf("nil error should not be retryable")
	}
	if Retryable(stderrs.New("plain")) {
		t.Fatalf("foreign error should not be retryable")
	}
}
