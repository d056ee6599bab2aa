// Package goroutine запускает фоновые задачи с перехватом panic.
package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/client-intake/internal/logger"
)

// PanicReporter получает перехваченные panic фоновых задач.
type PanicReporter interface {
	ReportPanic(task string, recovered interface{}, stack []byte)
}

// Runner запускает задачи и передаёт их panic в reporter.
type Runner struct {
	reporter PanicReporter
}

// NewRunner создаёт Runner.
func NewRunner(reporter PanicReporter) *Runner {
	return &Runner{reporter: reporter}
}

// Go запускает задачу task в отдельной горутине.
func (r *Runner) Go(task string, fn func()) {
	go func() {
		defer r.recover(task)
		fn()
	}()
}

// GoWithContext запускает задачу с контекстом.
// Возвращённый канал закрывается после завершения задачи, в том числе после panic.
func (r *Runner) GoWithContext(ctx context.Context, task string, fn func(context.Context)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer r.recover(task)
		fn(ctx)
	}()
	return done
}

func (r *Runner) recover(task string) {
	if rec := recover(); rec != nil {
		r.reporter.ReportPanic(task, rec, debug.Stack())
	}
}

// logReporter пишет panic в глобальный логгер на момент вызова.
type logReporter struct{}

func (logReporter) ReportPanic(task string, recovered interface{}, stack []byte) {
	logger.Log.WithFields(logrus.Fields{
		"component": "goroutine",
		"task":      task,
		"panic":     recovered,
		"stack":     string(stack),
	}).Error("panic в фоновой задаче")
}

var defaultRunner = NewRunner(logReporter{})

// Go запускает задачу через Runner, пишущий panic в logrus.
func Go(task string, fn func()) {
	defaultRunner.Go(task, fn)
}

// GoWithContext запускает задачу с контекстом через Runner, пишущий panic в logrus.
func GoWithContext(ctx context.Context, task string, fn func(context.Context)) <-chan struct{} {
	return defaultRunner.GoWithContext(ctx, task, fn)
}
