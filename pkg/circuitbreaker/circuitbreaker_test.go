package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTestError = errors.New("test error")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	cb := New(cfg)
	cb.now = clock.Now
	cb.stateChangeTime = clock.Now()
	return cb, clock
}

func failN(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(func() error { return errTestError })
	}
}

func TestCircuitBreaker_ClosedPassesErrorsThrough(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig())

	err := cb.Execute(func() error { return errTestError })

	assert.ErrorIs(t, err, errTestError)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Second})

	failN(cb, 2)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must not invoke the function")
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Second})

	failN(cb, 1)
	_ = cb.Execute(func() error { return nil })
	failN(cb, 1)

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Second, MaxRequestsHalfOpen: 1})

	failN(cb, 1)
	clock.Advance(time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Second})

	var transitions []State
	cb.OnStateChange(func(_, to State) { transitions = append(transitions, to) })

	failN(cb, 1)
	clock.Advance(2 * time.Second)
	failN(cb, 1)

	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateOpen}, transitions)
}

func TestExecuteWithResult(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig())

	v, err := ExecuteWithResult(cb, func() (int, error) { return 42, nil })
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
