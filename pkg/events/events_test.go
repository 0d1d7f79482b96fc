package events

import (
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrigin_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "serial", OriginSerial.String())
	assert.Equal(t, "bridge", OriginBridge.String())
	assert.Equal(t, "unknown", Origin(42).String())
}

func TestQueue_DrainPreservesOrder(t *testing.T) {
	t.Parallel()

	q := NewQueue(OriginSerial, 16)
	for i := range 10 {
		require.True(t, q.Put(strconv.Itoa(i)))
	}

	lines := q.Drain()
	require.Len(t, lines, 10)
	for i, line := range lines {
		assert.Equal(t, strconv.Itoa(i), line.Text)
		assert.Equal(t, OriginSerial, line.Origin)
	}
	assert.Empty(t, q.Drain())
}

func TestQueue_DropsWhenFull(t *testing.T) {
	t.Parallel()

	q := NewQueue(OriginBridge, 2)
	assert.True(t, q.Put("a"))
	assert.True(t, q.Putf("%s", "b"))
	assert.False(t, q.Put("c"))
	assert.Equal(t, uint64(1), q.Dropped())
	assert.Equal(t, 2, q.Len())

	lines := q.Drain()
	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[0].Text)
	assert.Equal(t, "b", lines[1].Text)
}

func TestQueue_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	t.Parallel()

	const producers, perProducer = 4, 200
	q := NewQueue(OriginBridge, producers*perProducer)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				q.Putf("%d:%d", p, i)
			}
		}()
	}
	wg.Wait()

	next := make(map[string]int)
	lines := q.Drain()
	require.Len(t, lines, producers*perProducer)
	for _, line := range lines {
		var p, i int
		_, err := fmt.Sscanf(line.Text, "%d:%d", &p, &i)
		require.NoError(t, err)
		key := strconv.Itoa(p)
		assert.Equal(t, next[key], i, "producer %d out of order", p)
		next[key] = i + 1
	}
}

func TestQueues_For(t *testing.T) {
	t.Parallel()

	qs := NewQueues(0)
	assert.Same(t, qs.Serial, qs.For(OriginSerial))
	assert.Same(t, qs.Bridge, qs.For(OriginBridge))
	assert.Equal(t, OriginBridge, qs.Bridge.Origin())
}
