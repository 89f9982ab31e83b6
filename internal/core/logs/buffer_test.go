package logs

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Entry Tests
// =============================================================================

func TestEntry_JSONShape(t *testing.T) {
	e := Entry{
		Stream:    StreamStderr,
		Message:   "boom",
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"stderr","message":"boom","timestamp":"2024-03-01T12:00:00Z"}`, string(data))
}

func TestWithStage_KeepsExistingStage(t *testing.T) {
	in := []Entry{Stdout("a"), {Stream: StreamStdout, Message: "b", Stage: "init"}}

	out := WithStage(in, "apply")

	require.Len(t, out, 2)
	assert.Equal(t, "apply", out[0].Stage)
	assert.Equal(t, "init", out[1].Stage)
	assert.Empty(t, in[0].Stage, "input must not be mutated")
}

func TestSpawnFailure(t *testing.T) {
	res := SpawnFailure(errors.New("exec: \"sh\": executable file not found"))

	assert.False(t, res.Succeeded)
	assert.Equal(t, -1, res.ExitCode)
	require.Len(t, res.Logs, 1)
	assert.Equal(t, StreamStderr, res.Logs[0].Stream)
	assert.Contains(t, res.Logs[0].Message, "executable file not found")
}

// =============================================================================
// Buffer Tests
// =============================================================================

func TestBuffer_PreservesOrder(t *testing.T) {
	b := NewBuffer(0)
	b.Append(Stdout("one"), Stderr("two"))
	b.Append(Stdout("three"))

	entries := b.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "one", entries[0].Message)
	assert.Equal(t, "two", entries[1].Message)
	assert.Equal(t, "three", entries[2].Message)
}

func TestBuffer_EvictsOldestOverCeiling(t *testing.T) {
	b := NewBuffer(10)
	b.Append(Stdout("aaaa"), Stdout("bbbb"), Stdout("cccc"))

	count, bytes := b.Dropped()
	assert.Equal(t, 1, count)
	assert.Equal(t, 4, bytes)
	assert.Equal(t, 2, b.Len())

	entries := b.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, StreamStderr, entries[0].Stream)
	assert.Contains(t, entries[0].Message, "log truncated")
	assert.Equal(t, "bbbb", entries[1].Message)
	assert.Equal(t, "cccc", entries[2].Message)
}

func TestBuffer_KeepsNewestEntryEvenWhenOversized(t *testing.T) {
	b := NewBuffer(4)
	b.Append(Stdout("ab"))
	b.Append(Stdout(strings.Repeat("x", 32)))

	entries := b.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, strings.Repeat("x", 32), entries[1].Message)
}

func TestBuffer_NoNoticeWithoutEviction(t *testing.T) {
	b := NewBuffer(1024)
	b.Append(Stdout("fine"))

	entries := b.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "fine", entries[0].Message)
}

func TestBuffer_ConcurrentAppend(t *testing.T) {
	b := NewBuffer(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Append(Stdout("x"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, b.Len())
}
