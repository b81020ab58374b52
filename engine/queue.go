package engine

import (
	"time"

	"github.com/cwbudde/algo-stream/audio"
)

// chunkQueue is a bounded single-producer single-consumer queue of owned
// chunks. Sending transfers ownership; a full queue blocks the producer,
// applying backpressure. Closing the queue signals end of stream.
type chunkQueue struct {
	ch chan *audio.Chunk
}

func newChunkQueue(capacity int) *chunkQueue {
	return &chunkQueue{ch: make(chan *audio.Chunk, capacity)}
}

// send blocks until there is space or stop closes. Returns false when the
// stop channel fired.
func (q *chunkQueue) send(chunk *audio.Chunk, stop <-chan struct{}) bool {
	select {
	case q.ch <- chunk:
		return true
	case <-stop:
		return false
	}
}

// recv blocks until a chunk arrives, the queue closes (nil, false), the
// timeout expires (nil, true) or stop fires (nil, false).
func (q *chunkQueue) recv(timeout time.Duration, stop <-chan struct{}) (chunk *audio.Chunk, timedOut, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case chunk, open := <-q.ch:
		if !open {
			return nil, false, false
		}
		return chunk, false, true
	case <-timer.C:
		return nil, true, true
	case <-stop:
		return nil, false, false
	}
}

// close marks end of stream.
func (q *chunkQueue) close() {
	close(q.ch)
}

// level returns the number of queued chunks.
func (q *chunkQueue) level() int {
	return len(q.ch)
}
