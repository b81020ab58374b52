package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cwbudde/algo-stream/audio"
)

func TestChunkQueueOrderAndClose(t *testing.T) {
	q := newChunkQueue(4)
	stop := make(chan struct{})

	for i := 0; i < 3; i++ {
		chunk := audio.NewChunk(1, 8)
		chunk.Timestamp = uint64(i)
		assert.True(t, q.send(chunk, stop))
	}
	q.close()

	for i := 0; i < 3; i++ {
		chunk, timedOut, ok := q.recv(time.Second, stop)
		assert.True(t, ok)
		assert.False(t, timedOut)
		assert.Equal(t, uint64(i), chunk.Timestamp)
	}
	// Closed and drained.
	_, _, ok := q.recv(time.Second, stop)
	assert.False(t, ok)
}

func TestChunkQueueTimeout(t *testing.T) {
	q := newChunkQueue(1)
	stop := make(chan struct{})
	chunk, timedOut, ok := q.recv(5*time.Millisecond, stop)
	assert.Nil(t, chunk)
	assert.True(t, timedOut)
	assert.True(t, ok)
}

func TestChunkQueueStopUnblocksSend(t *testing.T) {
	q := newChunkQueue(1)
	stop := make(chan struct{})
	assert.True(t, q.send(audio.NewChunk(1, 8), stop))

	done := make(chan bool, 1)
	go func() {
		// The queue is full; this blocks until stop fires.
		done <- q.send(audio.NewChunk(1, 8), stop)
	}()
	time.Sleep(10 * time.Millisecond)
	close(stop)
	assert.False(t, <-done)
}

func TestStatusDropOldest(t *testing.T) {
	ch := make(chan statusMessage, 2)
	sendStatus(ch, statusMessage{kind: statusStarted})
	sendStatus(ch, statusMessage{kind: statusSilent})
	sendStatus(ch, statusMessage{kind: statusResumed}) // drops statusStarted

	first := <-ch
	second := <-ch
	assert.Equal(t, statusSilent, first.kind)
	assert.Equal(t, statusResumed, second.kind)
	select {
	case <-ch:
		t.Fatal("queue should be empty")
	default:
	}
}
