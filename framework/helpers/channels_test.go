package helpers

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gridnav/planner-test-harness/framework/opt"
)

// testRecorder implements TestContext for asserting on failure behavior.
// FailNow panics with the recorder itself so that tests can catch it.
type testRecorder struct {
	errs []error
}

func (r *testRecorder) Errorf(msgFormat string, msgArgs ...interface{}) {
	r.errs = append(r.errs, fmt.Errorf(msgFormat, msgArgs...))
}

func (r *testRecorder) FailNow() {
	panic(r)
}

func TestNonBlockingSend(t *testing.T) {
	ch1 := make(chan string)
	assert.False(t, NonBlockingSend(ch1, "a"))

	ch2 := make(chan string, 1)
	assert.True(t, NonBlockingSend(ch2, "a"))
	assert.Equal(t, "a", <-ch2)
}

func TestTryReceive(t *testing.T) {
	ch := make(chan string, 1)
	assert.Equal(t, opt.None[string](), TryReceive(ch, time.Millisecond))

	ch <- "a"
	assert.Equal(t, opt.Some("a"), TryReceive(ch, time.Millisecond))

	go func() {
		time.Sleep(time.Millisecond * 50)
		ch <- "b"
	}()
	assert.Equal(t, opt.Some("b"), TryReceive(ch, time.Second))
}

func TestRequireValue(t *testing.T) {
	tr1 := &testRecorder{}
	ch := make(chan string, 1)
	assert.PanicsWithValue(t, tr1, func() { _ = RequireValue(tr1, ch, time.Millisecond) })
	if assert.Len(t, tr1.errs, 1) {
		assert.Contains(t, tr1.errs[0].Error(), "waiting for value of type string")
	}

	tr2 := &testRecorder{}
	ch <- "a"
	assert.Equal(t, "a", RequireValue(tr2, ch, time.Millisecond))
	assert.Empty(t, tr2.errs)

	tr3 := &testRecorder{}
	go func() {
		time.Sleep(time.Millisecond * 50)
		ch <- "b"
	}()
	assert.Equal(t, "b", RequireValue(tr3, ch, time.Second))
	assert.Empty(t, tr3.errs)
}

func TestRequireNoMoreValues(t *testing.T) {
	tr1 := &testRecorder{}
	ch := make(chan string, 1)
	RequireNoMoreValues(tr1, ch, time.Millisecond)
	assert.Empty(t, tr1.errs)

	tr2 := &testRecorder{}
	ch <- "a"
	assert.Panics(t, func() { RequireNoMoreValues(tr2, ch, time.Millisecond) })
	if assert.Len(t, tr2.errs, 1) {
		assert.Contains(t, tr2.errs[0].Error(), "extra value of type string")
	}
}
