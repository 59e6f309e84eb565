package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Test Plan for WatchCoordinator:
// - A change batch runs one pass with the sorted changed paths
// - The watcher is paused for the duration of a pass and resumed afterwards
// - Changes arriving during a pass are merged into one follow-up pass
// - A failing pass is logged and the coordinator keeps running
// - Cancelling the context stops the watcher and returns ctx.Err()
// - A watcher that fails to start is stopped and its error returned

// fakeWatcher lets tests push change batches by hand.
type fakeWatcher struct {
	mu       sync.Mutex
	callback func([]string)
	paused   bool
	stopped  bool
	startErr error
	started  chan struct{}
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{started: make(chan struct{})}
}

func (f *fakeWatcher) Start(ctx context.Context, callback func([]string)) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.callback = callback
	f.mu.Unlock()
	close(f.started)
	return nil
}

func (f *fakeWatcher) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeWatcher) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
}

func (f *fakeWatcher) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
}

func (f *fakeWatcher) isPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeWatcher) fire(files ...string) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	cb(files)
}

type passRecorder struct {
	mu     sync.Mutex
	passes [][]string
	done   chan struct{}
}

func newPassRecorder() *passRecorder {
	return &passRecorder{done: make(chan struct{}, 16)}
}

func (r *passRecorder) record(files []string) {
	r.mu.Lock()
	r.passes = append(r.passes, files)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *passRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("pass not run")
	}
}

func (r *passRecorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.passes...)
}

func TestWatchCoordinator_RunsPassOnChange(t *testing.T) {
	t.Parallel()

	fw := newFakeWatcher()
	rec := newPassRecorder()
	var pausedDuringPass bool

	c := NewWatchCoordinator(fw, func(ctx context.Context, changed []string) error {
		pausedDuringPass = fw.isPaused()
		rec.record(changed)
		return nil
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()

	<-fw.started
	fw.fire("b.class", "a.class")
	rec.wait(t)

	assert.Equal(t, [][]string{{"a.class", "b.class"}}, rec.snapshot())
	assert.True(t, pausedDuringPass)
	assert.Eventually(t, func() bool { return !fw.isPaused() }, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.True(t, fw.stopped)
}

func TestWatchCoordinator_MergesChangesDuringPass(t *testing.T) {
	t.Parallel()

	fw := newFakeWatcher()
	rec := newPassRecorder()
	release := make(chan struct{})
	first := true

	c := NewWatchCoordinator(fw, func(ctx context.Context, changed []string) error {
		if first {
			first = false
			// Changes seen while this pass runs
			fw.fire("x.class")
			fw.fire("y.class", "x.class")
			<-release
		}
		rec.record(changed)
		return nil
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()

	<-fw.started
	fw.fire("a.class")
	close(release)

	rec.wait(t)
	rec.wait(t)

	assert.Equal(t, [][]string{{"a.class"}, {"x.class", "y.class"}}, rec.snapshot())

	cancel()
	<-errCh
}

func TestWatchCoordinator_FailingPassKeepsRunning(t *testing.T) {
	t.Parallel()

	fw := newFakeWatcher()
	rec := newPassRecorder()

	c := NewWatchCoordinator(fw, func(ctx context.Context, changed []string) error {
		rec.record(changed)
		return errors.New("cyclic nesting")
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()

	<-fw.started
	fw.fire("a.class")
	rec.wait(t)
	fw.fire("b.class")
	rec.wait(t)

	assert.Len(t, rec.snapshot(), 2)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestWatchCoordinator_StartError(t *testing.T) {
	t.Parallel()

	fw := newFakeWatcher()
	fw.startErr = errors.New("no inotify")

	c := NewWatchCoordinator(fw, func(context.Context, []string) error { return nil }, nil)
	err := c.Start(context.Background())

	require.Error(t, err)
	assert.Equal(t, "no inotify", err.Error())
	assert.True(t, fw.stopped)
}
