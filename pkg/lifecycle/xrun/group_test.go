package xrun

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestGroup_Empty(t *testing.T) {
	g, _ := NewGroup(context.Background())
	if err := g.Wait(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestGroup_ServiceError(t *testing.T) {
	expectedErr := errors.New("test error")

	g, _ := NewGroup(context.Background())
	g.Go(func(ctx context.Context) error {
		return expectedErr
	})

	if err := g.Wait(); !errors.Is(err, expectedErr) {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}
}

func TestGroup_ErrorCancelsSiblings(t *testing.T) {
	var stopped atomic.Bool

	g, ctx := NewGroup(context.Background())
	g.GoWithName("waiter", func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Store(true)
		return ctx.Err()
	})
	g.GoWithName("failer", func(ctx context.Context) error {
		return errors.New("trigger")
	})

	if err := g.Wait(); err == nil || err.Error() != "trigger" {
		t.Errorf("expected 'trigger' error, got %v", err)
	}
	if ctx.Err() == nil {
		t.Error("context should be cancelled")
	}
	if !stopped.Load() {
		t.Error("sibling service did not observe cancellation")
	}
}

func TestGroup_CancelWithCause(t *testing.T) {
	cause := errors.New("shutdown requested")

	g, _ := NewGroup(context.Background())
	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	g.Cancel(cause)

	if err := g.Wait(); !errors.Is(err, cause) {
		t.Errorf("expected cause %v, got %v", cause, err)
	}
}

func TestGroup_CancelWithoutCause(t *testing.T) {
	g, _ := NewGroup(context.Background())
	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	g.Cancel(nil)

	if err := g.Wait(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestGroup_InternalCanceledNotFiltered(t *testing.T) {
	g, _ := NewGroup(context.Background())
	g.Go(func(ctx context.Context) error {
		return context.Canceled
	})

	if err := g.Wait(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled from service, got %v", err)
	}
}

func TestGroup_NilFunc(t *testing.T) {
	g, _ := NewGroup(context.Background())
	g.Go(nil)
	if err := g.Wait(); !errors.Is(err, ErrNilFunc) {
		t.Errorf("expected ErrNilFunc, got %v", err)
	}

	g, _ = NewGroup(context.Background())
	g.GoWithName("nil", nil)
	if err := g.Wait(); !errors.Is(err, ErrNilFunc) {
		t.Errorf("expected ErrNilFunc, got %v", err)
	}
}

func TestGroup_NilContext(t *testing.T) {
	//nolint:staticcheck // 验证 nil context 被归一化
	g, ctx := NewGroup(nil)
	if ctx == nil {
		t.Fatal("context should not be nil")
	}
	if err := g.Wait(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestRun_Signal(t *testing.T) {
	sigc := make(chan os.Signal, 1)
	ctx := withTestSigChan(context.Background(), sigc)

	var stopped atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, []Option{WithName("test")}, Named("loop", ServiceFunc(func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Store(true)
			return ctx.Err()
		})))
	}()

	sigc <- syscall.SIGTERM

	select {
	case err := <-done:
		if !errors.Is(err, ErrSignal) {
			t.Fatalf("expected ErrSignal, got %v", err)
		}
		var sigErr *SignalError
		if !errors.As(err, &sigErr) || sigErr.Signal != syscall.SIGTERM {
			t.Errorf("expected SIGTERM, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after signal")
	}
	if !stopped.Load() {
		t.Error("service did not stop")
	}
}

func TestRun_AllServicesFinish(t *testing.T) {
	var ran atomic.Int32
	svc := ServiceFunc(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	err := Run(context.Background(), nil, svc, Named("second", svc))
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if ran.Load() != 2 {
		t.Errorf("expected 2 runs, got %d", ran.Load())
	}
}

func TestRun_NoServices(t *testing.T) {
	if err := Run(context.Background(), nil); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestRun_NilService(t *testing.T) {
	err := Run(context.Background(), []Option{WithoutSignalHandler()}, nil)
	if !errors.Is(err, ErrNilService) {
		t.Errorf("expected ErrNilService, got %v", err)
	}

	err = Run(context.Background(), []Option{WithoutSignalHandler()}, Named("nil", nil))
	if !errors.Is(err, ErrNilService) {
		t.Errorf("expected ErrNilService, got %v", err)
	}
}

func TestRun_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, []Option{WithSignals([]os.Signal{syscall.SIGUSR1})}, ServiceFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}))
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after parent cancel")
	}
}

func TestSignalError(t *testing.T) {
	err := &SignalError{Signal: syscall.SIGINT}
	if !errors.Is(err, ErrSignal) {
		t.Error("SignalError should match ErrSignal")
	}
	if err.Error() != "received signal interrupt" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if (&SignalError{}).Error() != "received signal <nil>" {
		t.Error("nil signal message mismatch")
	}
}

func TestDefaultSignals_ReturnsCopy(t *testing.T) {
	a := DefaultSignals()
	a[0] = syscall.SIGUSR2
	if DefaultSignals()[0] != syscall.SIGHUP {
		t.Error("DefaultSignals should return a fresh slice")
	}
}
