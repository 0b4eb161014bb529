package starlark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestThreadPool_Reuse(t *testing.T) {
	pool := newThreadPool(2)

	thread := pool.get("first")
	assert.Equal(t, "first", thread.Name)
	pool.put(thread)
	assert.Equal(t, 1, pool.size())

	again := pool.get("second")
	assert.Same(t, thread, again)
	assert.Equal(t, "second", again.Name)
	assert.Equal(t, 0, pool.size())
}

func TestThreadPool_MaxSize(t *testing.T) {
	pool := newThreadPool(2)

	threads := []*starlark.Thread{pool.get("a"), pool.get("b"), pool.get("c")}
	for _, th := range threads {
		pool.put(th)
	}
	assert.Equal(t, 2, pool.size())
}

func TestExecutionContext_StepBudgetPerEvaluation(t *testing.T) {
	ctx, err := NewExecutionContext(nil)
	require.NoError(t, err)

	// Each evaluation gets its own budget even though threads are reused.
	for i := 0; i < 5; i++ {
		v, err := ctx.EvalExpr("len([x for x in range(1000)])", "loop", 1)
		require.NoError(t, err)
		assert.Equal(t, "1000", v.String())
	}

	_, err = ctx.EvalExpr("len([x for x in range(100000000)])", "loop", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many steps")
}
