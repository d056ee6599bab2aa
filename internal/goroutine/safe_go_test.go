package goroutine

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type captureReporter struct {
	mu    sync.Mutex
	tasks []string
}

func (r *captureReporter) ReportPanic(task string, _ interface{}, _ []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
}

func (r *captureReporter) reported() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tasks...)
}

func TestGoWithContext_RecoversPanic(t *testing.T) {
	defer goleak.VerifyNone(t)

	rep := &captureReporter{}
	done := NewRunner(rep).GoWithContext(context.Background(), "autosave", func(context.Context) {
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("горутина не завершилась")
	}
	got := rep.reported()
	if len(got) != 1 || got[0] != "autosave" {
		t.Fatalf("ожидалась одна panic задачи autosave, получено %v", got)
	}
}

func TestGoWithContext_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	rep := &captureReporter{}
	done := NewRunner(rep).GoWithContext(ctx, "sweeper", func(ctx context.Context) {
		<-ctx.Done()
	})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("горутина не остановилась после отмены контекста")
	}
	if len(rep.reported()) != 0 {
		t.Fatal("отмена контекста не должна считаться panic")
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	defer goleak.VerifyNone(t)

	rep := &captureReporter{}
	finished := make(chan struct{})
	NewRunner(rep).Go("ws_write", func() {
		defer close(finished)
		panic("write failed")
	})

	<-finished
	deadline := time.Now().Add(time.Second)
	for len(rep.reported()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(rep.reported()) != 1 {
		t.Fatalf("ожидалась одна panic, получено %d", len(rep.reported()))
	}
}
