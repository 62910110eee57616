package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kproc/service/messaging"
)

type lifecycle struct {
	PID  int
	Kind string
}

func testConfig() Config {
	config := DefaultConfig()
	config.RetryDelay = 5 * time.Millisecond
	return config
}

func TestQueue_PublishConsume(t *testing.T) {
	queue := NewQueue[lifecycle](testConfig())
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, &lifecycle{PID: 1, Kind: "fork"}))
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, lifecycle{PID: 1, Kind: "fork"}, *message.T())
	assert.NotEmpty(t, message.(*Message[lifecycle]).ID())

	assert.NoError(t, message.Ack())
	assert.Error(t, message.Ack())
	assert.Error(t, message.Nack(nil))
}

func TestQueue_Retries(t *testing.T) {
	config := testConfig()
	config.MaxRetries = 2
	queue := NewQueue[lifecycle](config)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &lifecycle{PID: 7}))
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err, "attempt %d", attempt)
		assert.Equal(t, 7, message.T().PID)
		require.NoError(t, message.Nack(errors.New("boom")))
	}
	assert.Eventually(t, func() bool { return queue.DLQSize() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_DropWhenFull(t *testing.T) {
	testCases := []struct {
		description  string
		dropWhenFull bool
		expectErr    error
	}{
		{description: "drop", dropWhenFull: true, expectErr: messaging.ErrQueueFull},
		{description: "block until deadline", dropWhenFull: false, expectErr: context.DeadlineExceeded},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			config := testConfig()
			config.QueueBuffer = 1
			config.DropWhenFull = testCase.dropWhenFull
			queue := NewQueue[lifecycle](config)
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			require.NoError(t, queue.Publish(ctx, &lifecycle{PID: 1}))
			err := queue.Publish(ctx, &lifecycle{PID: 2})
			assert.ErrorIs(t, err, testCase.expectErr)
			if testCase.dropWhenFull {
				assert.EqualValues(t, 1, queue.Dropped())
			}
		})
	}
}

func TestQueue_Concurrency(t *testing.T) {
	config := testConfig()
	config.DropWhenFull = false
	queue := NewQueue[lifecycle](config)
	ctx := context.Background()
	producers, perProducer := 10, 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[string]bool{}
	for i := 0; i < producers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				message, err := queue.Consume(ctx)
				if !assert.NoError(t, err) {
					return
				}
				assert.NoError(t, message.Ack())
				mu.Lock()
				seen[message.T().Kind] = true
				mu.Unlock()
			}
		}()
		go func(producer int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				assert.NoError(t, queue.Publish(ctx, &lifecycle{PID: producer, Kind: fmt.Sprintf("p%d-%d", producer, j)}))
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
	assert.Len(t, seen, producers*perProducer)
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_ContextCancellation(t *testing.T) {
	queue := NewQueue[lifecycle](DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, queue.Publish(ctx, &lifecycle{}))

	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelTimeout()
	_, err := queue.Consume(timeoutCtx)
	assert.Error(t, err)

	assert.NoError(t, queue.Publish(context.Background(), &lifecycle{}))
	message, err := queue.Consume(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, message)
}
