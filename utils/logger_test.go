package utils

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerConcurrentFirstUse(t *testing.T) {
	var wg sync.WaitGroup
	loggers := make([]*Logger, 8)
	for i := range loggers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loggers[i] = L()
			loggers[i].Info("worker %d", i)
		}(i)
	}
	wg.Wait()

	for _, l := range loggers {
		require.NotNil(t, l)
		assert.Same(t, loggers[0], l)
	}
}

func TestCRLFWriterRawMode(t *testing.T) {
	var buf bytes.Buffer
	w := &crlfWriter{w: &buf}

	n, err := w.Write([]byte("a\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	w.raw.Store(true)
	n, err = w.Write([]byte("c\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "a\nb\nc\r\n", buf.String())
}
