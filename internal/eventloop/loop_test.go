package eventloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsTasksInPostOrder(t *testing.T) {
	t.Parallel()

	l := New("test")
	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 100 {
		require.True(t, l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	l.Close()

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_TaskCanPostFollowUp(t *testing.T) {
	t.Parallel()

	l := New("test")
	defer l.Close()

	done := make(chan string, 1)
	l.Post(func() {
		l.Post(func() { done <- "follow-up" })
	})

	select {
	case v := <-done:
		assert.Equal(t, "follow-up", v)
	case <-time.After(time.Second):
		t.Fatal("follow-up task never ran")
	}
}

func TestLoop_SurvivesPanickingTask(t *testing.T) {
	t.Parallel()

	l := New("test")
	defer l.Close()

	ran := make(chan struct{})
	l.Post(func() { panic("boom") })
	l.Post(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("loop stopped after a panicking task")
	}
}

func TestLoop_PostAfterClose(t *testing.T) {
	t.Parallel()

	l := New("test")
	l.Close()

	assert.False(t, l.Post(func() { t.Error("task ran after close") }))
	select {
	case <-l.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestLoop_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	l := New("test")
	l.Close()
	l.Close()
}
