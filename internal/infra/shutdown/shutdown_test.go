package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"syscall"
	"testing"
	"time"
)

func newTestHandler() *Handler {
	return NewHandler(5*time.Second, slog.New(slog.DiscardHandler))
}

func TestNewHandler(t *testing.T) {
	h := NewHandler(5*time.Second, nil)
	if h == nil {
		t.Fatal("NewHandler returned nil")
	}
	if h.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.timeout)
	}
	if h.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
	if h.done == nil {
		t.Error("done channel should be initialized")
	}
}

func TestHandler_Done(t *testing.T) {
	h := newTestHandler()

	select {
	case <-h.Done():
		t.Error("Done channel should not be closed initially")
	default:
	}
}

func TestHandler_WaitContext_ReverseOrder(t *testing.T) {
	h := newTestHandler()

	var (
		mu        sync.Mutex
		callOrder []int
	)
	for i := 1; i <= 3; i++ {
		h.OnShutdown("hook", func(context.Context) error {
			mu.Lock()
			callOrder = append(callOrder, i)
			mu.Unlock()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.WaitContext(ctx); err != nil {
		t.Fatalf("WaitContext() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(callOrder) != 3 || callOrder[0] != 3 || callOrder[1] != 2 || callOrder[2] != 1 {
		t.Errorf("hooks called in order %v, want [3 2 1]", callOrder)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after WaitContext returns")
	}
}

func TestHandler_HookErrorsJoined(t *testing.T) {
	h := newTestHandler()

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	h.OnShutdown("a", func(context.Context) error { return errA })
	h.OnShutdown("ok", func(context.Context) error { return nil })
	h.OnShutdown("b", func(context.Context) error { return errB })

	err := h.Shutdown()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Shutdown() error = %v, want both hook errors", err)
	}
}

func TestHandler_ShutdownOnce(t *testing.T) {
	h := newTestHandler()

	calls := 0
	h.OnShutdown("count", func(context.Context) error {
		calls++
		return nil
	})

	_ = h.Shutdown()
	_ = h.Shutdown()

	if calls != 1 {
		t.Errorf("hook ran %d times, want 1", calls)
	}
}

func TestHandler_HookContextHasDeadline(t *testing.T) {
	h := newTestHandler()

	h.OnShutdown("deadline", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	})

	if err := h.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestHandler_Wait_WithSignal(t *testing.T) {
	h := newTestHandler()

	called := make(chan struct{})
	h.OnShutdown("signal", func(context.Context) error {
		close(called)
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Wait()
	}()

	// Give Wait time to set up signal handler
	time.Sleep(50 * time.Millisecond)

	syscall.Kill(syscall.Getpid(), syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete in time")
	}

	select {
	case <-called:
	default:
		t.Error("hook was not called")
	}
}

func TestHandler_ConcurrentOnShutdown(t *testing.T) {
	h := newTestHandler()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnShutdown("noop", func(context.Context) error { return nil })
		}()
	}
	wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.hooks) != 10 {
		t.Errorf("expected 10 hooks, got %d", len(h.hooks))
	}
}
