package pipeline

import (
	"testing"
	"time"

	"github.com/harper/rpc-engine/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestWorkerRecoversPanics(t *testing.T) {
	w := newWorker(10*time.Millisecond, logger.Named("test"))
	w.process = func(payload string) Result {
		if payload == "boom" {
			panic("exploded")
		}
		return Result{text: payload}
	}
	w.onPanic = func(payload string, panicked any) Result {
		return Result{hasError: true, text: payload}
	}

	bad := w.submit("boom")
	good := w.submit("fine")

	assert.True(t, bad.Get().HasError())
	assert.Equal(t, "fine", good.Get().Text())
}

func TestWorkerStopsWhenIdle(t *testing.T) {
	w := newWorker(5*time.Millisecond, logger.Named("test"))
	w.process = func(payload string) Result { return Result{text: payload} }

	w.submit("a").Get()
	assert.Eventually(t, func() bool { return w.State() == Idle }, time.Second, time.Millisecond)
	assert.Equal(t, 1, w.Starts())
}

func TestWorkerStaysRunningWhileBusy(t *testing.T) {
	w := newWorker(time.Second, logger.Named("test"))
	release := make(chan struct{})
	w.process = func(payload string) Result {
		<-release
		return Result{text: payload}
	}

	first := w.submit("1")
	second := w.submit("2")
	assert.Equal(t, Running, w.State())
	assert.Equal(t, 1, w.Starts())

	close(release)
	assert.Equal(t, "1", first.Get().Text())
	assert.Equal(t, "2", second.Get().Text())
}
