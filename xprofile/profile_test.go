package xprofile

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilerWritesFiles(t *testing.T) {
	dir := t.TempDir()
	p, err := Start(dir, "mutex,block,mem")
	require.NoError(t, err)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				mu.Lock()
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	p.Stop()
	p.Stop()

	for _, name := range []string{"mutex.pprof", "block.pprof", "heap.pprof"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}

func TestProfilerModes(t *testing.T) {
	p, err := Start(t.TempDir(), "")
	require.NoError(t, err)
	p.Stop()

	_, err = Start(t.TempDir(), "cpu,gpu")
	assert.ErrorContains(t, err, "unknown mode")

	p = &Profiler{dir: t.TempDir()}
	require.NoError(t, p.Start("block"))
	assert.Error(t, p.Start("block"))
	p.Stop()
}
