package shutdown

import (
	"context"
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"
)

func TestWithSignalsCancelsOnSIGTERM(t *testing.T) {
	ctx, cancel := WithSignals(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer cancel()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after SIGTERM")
	}
}

func TestCleanupOutlivesParent(t *testing.T) {
	ctx, cancel := Cleanup(time.Second)
	defer cancel()
	if ctx.Err() != nil {
		t.Fatal("cleanup context must start live")
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Error("cleanup context must be bounded")
	}
}
