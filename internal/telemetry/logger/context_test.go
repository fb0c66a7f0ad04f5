package logger

import (
	"context"
	"strings"
	"testing"
)

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() without logger should return default")
	}
}

func TestRunID(t *testing.T) {
	ctx := context.Background()
	if got := RunIDFromContext(ctx); got != "" {
		t.Errorf("RunIDFromContext(empty) = %q", got)
	}
	ctx = WithRunID(ctx, "pnr-01")
	if got := RunIDFromContext(ctx); got != "pnr-01" {
		t.Errorf("RunIDFromContext() = %q, want pnr-01", got)
	}
}

func TestStateID(t *testing.T) {
	ctx := context.Background()
	if _, ok := StateIDFromContext(ctx); ok {
		t.Error("StateIDFromContext(empty) reported a value")
	}
	ctx = WithStateID(ctx, 42)
	id, ok := StateIDFromContext(ctx)
	if !ok || id != 42 {
		t.Errorf("StateIDFromContext() = %d, %v; want 42, true", id, ok)
	}
}

func TestL_StateZero(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")
	ctx := WithStateID(WithLogger(context.Background(), l), 0)

	L(ctx).Info("root state")
	if want := `"state_id":0`; !strings.Contains(buf.String(), want) {
		t.Errorf("output %q missing %s", buf.String(), want)
	}
}
