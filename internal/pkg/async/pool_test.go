package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteCollectsAllResults(t *testing.T) {
	pool := NewPool(3)

	tasks := []Task{
		{Name: "a", Execute: func() (interface{}, error) { return 1, nil }},
		{Name: "b", Execute: func() (interface{}, error) { return 2, nil }},
		{Name: "c", Execute: func() (interface{}, error) { return nil, errors.New("boom") }},
	}

	results := pool.Execute(context.Background(), tasks)
	require.Len(t, results, 3)
	assert.Equal(t, 1, results["a"].Data)
	assert.Equal(t, 2, results["b"].Data)
	assert.Error(t, results["c"].Err)
}

func TestExecuteIsReusable(t *testing.T) {
	pool := NewPool(2)

	for i := 0; i < 3; i++ {
		results := pool.Execute(context.Background(), []Task{
			{Name: "only", Execute: func() (interface{}, error) { return "ok", nil }},
		})
		require.Len(t, results, 1)
		assert.Equal(t, "ok", results["only"].Data)
	}
}

func TestExecuteEmptyTaskList(t *testing.T) {
	pool := NewPool(2)
	results := pool.Execute(context.Background(), nil)
	assert.Empty(t, results)
}

func TestExecuteStopsOnCancel(t *testing.T) {
	pool := NewPool(1)
	ctx, cancel := context.WithCancel(context.Background())

	blocked := make(chan struct{})
	tasks := []Task{
		{Name: "slow", Execute: func() (interface{}, error) {
			<-blocked
			return nil, nil
		}},
		{Name: "never", Execute: func() (interface{}, error) { return nil, nil }},
	}

	done := make(chan map[string]Result, 1)
	go func() { done <- pool.Execute(ctx, tasks) }()

	cancel()
	select {
	case results := <-done:
		assert.LessOrEqual(t, len(results), 1)
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
	close(blocked)
}
