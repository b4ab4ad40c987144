package pathlock

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor_SamePathSharesLock(t *testing.T) {
	dir := t.TempDir()

	a := For(filepath.Join(dir, "topics.csv"))
	b := For(filepath.Join(dir, ".", "topics.csv"))
	c := For(filepath.Join(dir, "other.csv"))

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestFor_SerializesWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter")
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := For(path)
			l.Lock()
			defer l.Unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
}

func TestKey_LeavesURIsAlone(t *testing.T) {
	assert.Equal(t, "qdrant://localhost:6334/topics", Key("qdrant://localhost:6334/topics"))
	assert.True(t, filepath.IsAbs(Key("data/topics.csv")))
}
