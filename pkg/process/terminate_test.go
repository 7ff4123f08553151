package process

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domainerrors "github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSignaler implements Signaler with testify expectations.
type MockSignaler struct {
	mock.Mock
}

func (m *MockSignaler) Alive(pid int) (bool, error) {
	args := m.Called(pid)
	return args.Bool(0), args.Error(1)
}

func (m *MockSignaler) Terminate(pid int) error {
	return m.Called(pid).Error(0)
}

func (m *MockSignaler) Kill(pid int) error {
	return m.Called(pid).Error(0)
}

// FakeSignaler simulates a process table where each live PID either honours
// SIGTERM or ignores it.
type FakeSignaler struct {
	mu         sync.Mutex
	alive      map[int]bool
	ignoreTerm map[int]bool
	calls      []string
}

func NewFakeSignaler() *FakeSignaler {
	return &FakeSignaler{alive: map[int]bool{}, ignoreTerm: map[int]bool{}}
}

func (f *FakeSignaler) Spawn(pid int, ignoreTerm bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive[pid] = true
	f.ignoreTerm[pid] = ignoreTerm
}

func (f *FakeSignaler) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeSignaler) Alive(pid int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid], nil
}

func (f *FakeSignaler) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "term")
	if !f.alive[pid] {
		return domainerrors.NewNotFoundError("no such process", nil)
	}
	if !f.ignoreTerm[pid] {
		f.alive[pid] = false
	}
	return nil
}

func (f *FakeSignaler) Kill(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "kill")
	if !f.alive[pid] {
		return domainerrors.NewNotFoundError("no such process", nil)
	}
	f.alive[pid] = false
	return nil
}

func newTestTerminator(s Signaler) *Terminator {
	return NewTerminator(s, TerminatorOptions{PollInterval: 5 * time.Millisecond}, logging.NewNopLogger())
}

func TestTerminate_GracefulExit(t *testing.T) {
	signaler := NewFakeSignaler()
	signaler.Spawn(200, false)

	outcome := newTestTerminator(signaler).Terminate(context.Background(), 200, time.Second)

	assert.Equal(t, OutcomeStopped, outcome.Kind)
	assert.False(t, outcome.Forced)
	assert.True(t, outcome.Succeeded())
	assert.Equal(t, []string{"term"}, signaler.Calls())
}

func TestTerminate_EscalatesWhenGracefulSignalIgnored(t *testing.T) {
	signaler := NewFakeSignaler()
	signaler.Spawn(201, true)

	start := time.Now()
	outcome := newTestTerminator(signaler).Terminate(context.Background(), 201, 50*time.Millisecond)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, OutcomeStopped, outcome.Kind)
	assert.True(t, outcome.Forced)
	assert.Equal(t, []string{"term", "kill"}, signaler.Calls())

	alive, _ := signaler.Alive(201)
	assert.False(t, alive)
}

func TestTerminate_IdempotentOnExitedProcess(t *testing.T) {
	signaler := NewFakeSignaler()
	terminator := newTestTerminator(signaler)

	first := terminator.Terminate(context.Background(), 202, time.Second)
	second := terminator.Terminate(context.Background(), 202, time.Second)

	assert.Equal(t, OutcomeAlreadyGone, first.Kind)
	assert.Equal(t, OutcomeAlreadyGone, second.Kind)
	assert.Empty(t, signaler.Calls())
}

func TestTerminate_AccessDeniedOnGracefulSignal(t *testing.T) {
	signaler := &MockSignaler{}
	signaler.On("Alive", 203).Return(true, nil).Once()
	signaler.On("Terminate", 203).Return(domainerrors.NewPermissionError("denied", nil)).Once()

	outcome := newTestTerminator(signaler).Terminate(context.Background(), 203, time.Second)

	assert.Equal(t, OutcomeAccessDenied, outcome.Kind)
	assert.True(t, domainerrors.IsPermissionError(outcome.Err))
	signaler.AssertExpectations(t)
	signaler.AssertNotCalled(t, "Kill", 203)
}

func TestTerminate_AccessDeniedOnForcedSignal(t *testing.T) {
	signaler := &MockSignaler{}
	signaler.On("Alive", 204).Return(true, nil)
	signaler.On("Terminate", 204).Return(nil).Once()
	signaler.On("Kill", 204).Return(domainerrors.NewPermissionError("denied", nil)).Once()

	outcome := newTestTerminator(signaler).Terminate(context.Background(), 204, 20*time.Millisecond)

	assert.Equal(t, OutcomeAccessDenied, outcome.Kind)
	assert.True(t, outcome.Forced)
	signaler.AssertExpectations(t)
}

func TestTerminate_ProcessExitsBeforeSignal(t *testing.T) {
	signaler := &MockSignaler{}
	signaler.On("Alive", 205).Return(true, nil).Once()
	signaler.On("Terminate", 205).Return(domainerrors.NewNotFoundError("gone", nil)).Once()

	outcome := newTestTerminator(signaler).Terminate(context.Background(), 205, time.Second)

	assert.Equal(t, OutcomeAlreadyGone, outcome.Kind)
	signaler.AssertExpectations(t)
}

func TestTerminate_OtherFailureIsReported(t *testing.T) {
	signaler := &MockSignaler{}
	signaler.On("Alive", 206).Return(true, nil).Once()
	signaler.On("Terminate", 206).Return(errors.New("invalid argument")).Once()

	outcome := newTestTerminator(signaler).Terminate(context.Background(), 206, time.Second)

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	require.Error(t, outcome.Err)
	assert.Contains(t, outcome.Err.Error(), "invalid argument")
	assert.Contains(t, outcome.String(), "failed")
}

func TestTerminate_ResolveFailure(t *testing.T) {
	signaler := &MockSignaler{}
	signaler.On("Alive", 207).Return(false, errors.New("proc unreadable")).Once()

	outcome := newTestTerminator(signaler).Terminate(context.Background(), 207, time.Second)

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	signaler.AssertNotCalled(t, "Terminate", 207)
}

func TestTerminate_CancelledWhileWaitingForForcedExit(t *testing.T) {
	signaler := &MockSignaler{}
	signaler.On("Alive", 208).Return(true, nil)
	signaler.On("Terminate", 208).Return(nil).Once()
	signaler.On("Kill", 208).Return(nil).Once()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	outcome := newTestTerminator(signaler).Terminate(ctx, 208, 20*time.Millisecond)

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.True(t, outcome.Forced)
	assert.True(t, domainerrors.IsCancelledError(outcome.Err))
	signaler.AssertNumberOfCalls(t, "Kill", 1)
}

func TestTerminate_CancelledDuringGraceDoesNotEscalate(t *testing.T) {
	signaler := &MockSignaler{}
	signaler.On("Alive", 209).Return(true, nil)

	ctx, cancel := context.WithCancel(context.Background())
	signaler.On("Terminate", 209).Run(func(mock.Arguments) { cancel() }).Return(nil).Once()

	outcome := newTestTerminator(signaler).Terminate(ctx, 209, time.Second)

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.False(t, outcome.Forced)
	assert.True(t, domainerrors.IsCancelledError(outcome.Err))
	signaler.AssertNotCalled(t, "Kill", 209)
}
