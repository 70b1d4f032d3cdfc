package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
	"go.uber.org/zap/zaptest"
)

// execUnit returns a Unit that runs real interpreter code, for exercising
// the supervision paths end to end.
func execUnit(code string) Unit {
	return func(th *starlark.Thread) (starlark.StringDict, error) {
		return starlark.ExecFileOptions(fileOptions(), th, "test.star", code, starlark.StringDict{})
	}
}

func TestGovernorCompleted(t *testing.T) {
	g := NewGovernor(zaptest.NewLogger(t), time.Second, 500*time.Millisecond, 0)

	thread := &starlark.Thread{Name: "test"}
	outcome := g.Execute(context.Background(), thread, execUnit("x = 1 + 1"))

	assert.Equal(t, StateCompleted, outcome.State)
	assert.Nil(t, outcome.Err)
	require.Contains(t, outcome.Globals, "x")
}

func TestGovernorTimedOutBusyLoop(t *testing.T) {
	timeout := 100 * time.Millisecond
	grace := time.Second
	g := NewGovernor(zaptest.NewLogger(t), timeout, grace, 0)

	start := time.Now()
	thread := &starlark.Thread{Name: "test"}
	outcome := g.Execute(context.Background(), thread, execUnit("while True:\n    pass"))
	elapsed := time.Since(start)

	assert.Equal(t, StateTimedOut, outcome.State)
	require.NotNil(t, outcome.Err)
	assert.Equal(t, ErrTimedOut, outcome.Err.Kind)
	assert.Equal(t, timeout, outcome.Err.Limit)
	assert.Less(t, elapsed, timeout+grace+time.Second, "termination must be bounded by timeout plus grace")
}

func TestGovernorResourceExceeded(t *testing.T) {
	g := NewGovernor(zaptest.NewLogger(t), 10*time.Second, 500*time.Millisecond, 1000)

	thread := &starlark.Thread{Name: "test"}
	outcome := g.Execute(context.Background(), thread, execUnit("x = 0\nfor i in range(1000000):\n    x += i"))

	assert.Equal(t, StateResourceExceeded, outcome.State)
	require.NotNil(t, outcome.Err)
	assert.Equal(t, ErrResourceExceeded, outcome.Err.Kind)
	assert.Equal(t, uint64(1000), outcome.Err.Steps)
}

func TestGovernorCrashed(t *testing.T) {
	t.Run("UnhandledFault", func(t *testing.T) {
		g := NewGovernor(zaptest.NewLogger(t), time.Second, 500*time.Millisecond, 0)
		thread := &starlark.Thread{Name: "test"}
		outcome := g.Execute(context.Background(), thread, execUnit(`fail("strategy blew up")`))

		assert.Equal(t, StateCrashed, outcome.State)
		require.NotNil(t, outcome.Err)
		assert.Equal(t, ErrRuntimeFault, outcome.Err.Kind)
		assert.Contains(t, outcome.Err.Msg, "strategy blew up")
	})

	t.Run("SyntaxFault", func(t *testing.T) {
		g := NewGovernor(zaptest.NewLogger(t), time.Second, 500*time.Millisecond, 0)
		thread := &starlark.Thread{Name: "test"}
		outcome := g.Execute(context.Background(), thread, execUnit("def ("))

		assert.Equal(t, StateCrashed, outcome.State)
		require.NotNil(t, outcome.Err)
		assert.Equal(t, ErrSyntaxFault, outcome.Err.Kind)
		assert.NotEmpty(t, outcome.Err.Location)
	})

	t.Run("PanickingUnit", func(t *testing.T) {
		g := NewGovernor(zaptest.NewLogger(t), time.Second, 500*time.Millisecond, 0)
		thread := &starlark.Thread{Name: "test"}
		outcome := g.Execute(context.Background(), thread, func(_ *starlark.Thread) (starlark.StringDict, error) {
			panic("interpreter bug")
		})

		assert.Equal(t, StateCrashed, outcome.State)
		require.NotNil(t, outcome.Err)
		assert.Equal(t, ErrRuntimeFault, outcome.Err.Kind)
		assert.Contains(t, outcome.Err.Msg, "interpreter bug")
	})
}

func TestGovernorFaultTextCannotForgeLimitKinds(t *testing.T) {
	// Limit kinds must mean a governor-enforced limit actually tripped; a
	// program raising the limit phrases as its own message stays a runtime
	// fault with no limit metadata attached.
	cases := []struct {
		name string
		code string
	}{
		{"StepsText", `fail("too many steps")`},
		{"DeadlineText", `fail("wall-clock deadline exceeded")`},
		{"CallerText", `fail("cancelled by caller")`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGovernor(zaptest.NewLogger(t), time.Second, 500*time.Millisecond, 0)
			thread := &starlark.Thread{Name: "test"}
			outcome := g.Execute(context.Background(), thread, execUnit(tc.code))

			assert.Equal(t, StateCrashed, outcome.State)
			require.NotNil(t, outcome.Err)
			assert.Equal(t, ErrRuntimeFault, outcome.Err.Kind)
			assert.Zero(t, outcome.Err.Limit)
			assert.Zero(t, outcome.Err.Steps)
		})
	}
}

func TestGovernorCallerCancellation(t *testing.T) {
	g := NewGovernor(zaptest.NewLogger(t), 10*time.Second, time.Second, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	thread := &starlark.Thread{Name: "test"}
	outcome := g.Execute(ctx, thread, execUnit("while True:\n    pass"))

	assert.Equal(t, StateTimedOut, outcome.State)
	require.NotNil(t, outcome.Err)
	assert.Equal(t, ErrTimedOut, outcome.Err.Kind)
	assert.Contains(t, outcome.Err.Msg, "cancelled by caller")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGovernorTerminationFault(t *testing.T) {
	grace := 50 * time.Millisecond
	g := NewGovernor(zaptest.NewLogger(t), 50*time.Millisecond, grace, 0)

	release := make(chan struct{})
	defer close(release)

	// A unit that ignores the termination signal entirely.
	thread := &starlark.Thread{Name: "test"}
	outcome := g.Execute(context.Background(), thread, func(_ *starlark.Thread) (starlark.StringDict, error) {
		<-release
		return nil, nil
	})

	assert.Equal(t, StateCrashed, outcome.State)
	require.NotNil(t, outcome.Err)
	assert.Equal(t, ErrTerminationFault, outcome.Err.Kind)
	assert.Contains(t, outcome.Err.Msg, "grace period")
}
