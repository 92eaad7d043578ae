package scorecache

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/spam-bayes/lib/spamcheck"
)

func TestCache_PutGet(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	_, ok := c.Get("never stored")
	assert.False(t, ok)

	require.NoError(t, c.Put("buy now", spamcheck.Scores{Spam: 0.75, Ham: 0.25}))
	s, ok := c.Get("buy now")
	require.True(t, ok)
	assert.Equal(t, spamcheck.Scores{Spam: 0.75, Ham: 0.25}, s)

	_, ok = c.Get("Buy now")
	assert.False(t, ok, "exact text only")

	// overwrite
	require.NoError(t, c.Put("buy now", spamcheck.Scores{Spam: 0.1, Ham: 0.9}))
	s, ok = c.Get("buy now")
	require.True(t, ok)
	assert.Equal(t, spamcheck.Scores{Spam: 0.1, Ham: 0.9}, s)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cache.json")
	c, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, c.Path())

	require.NoError(t, c.Put("hello", spamcheck.Scores{Spam: 0.5000000000000001, Ham: 1e-300}))
	require.NoError(t, c.Put("", spamcheck.Scores{Spam: 1.5, Ham: 1.5}))
	assert.FileExists(t, path)

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
	s, ok := reopened.Get("hello")
	require.True(t, ok)
	assert.Equal(t, spamcheck.Scores{Spam: 0.5000000000000001, Ham: 1e-300}, s, "exact float round-trip")
	s, ok = reopened.Get("")
	require.True(t, ok)
	assert.Equal(t, spamcheck.Scores{Spam: 1.5, Ham: 1.5}, s)

	// no temp files left behind
	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestCache_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	key := spamcheck.Hash("hello")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`{"cache":{%q:[0.6,0.4]}}`, key)), 0o600))

	c, err := Open(path)
	require.NoError(t, err)
	s, ok := c.Get("hello")
	require.True(t, ok)
	assert.Equal(t, spamcheck.Scores{Spam: 0.6, Ham: 0.4}, s)

	require.NoError(t, c.Put("hello", spamcheck.Scores{Spam: 0.2, Ham: 0.8}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"cache":{%q:[0.2,0.8]}}`, key), string(data))
}

func TestCache_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, c.Clear(), "no file yet")

	require.NoError(t, c.Put("hello", spamcheck.Scores{Spam: 1, Ham: 2}))
	require.NoError(t, c.Clear())
	assert.NoFileExists(t, path)

	_, ok := c.Get("hello")
	assert.True(t, ok, "memory of the current instance is kept")

	fresh, err := Open(path)
	require.NoError(t, err)
	_, ok = fresh.Get("hello")
	assert.False(t, ok, "new instance starts empty")
	assert.Equal(t, 0, fresh.Len())
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	require.NoError(t, Remove(path), "missing file")

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	_, err := Open(path)
	require.Error(t, err)
	require.NoError(t, Remove(path))
	assert.NoFileExists(t, path)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "nested"), 0o750))
	err = Remove(sub)
	require.Error(t, err, "non-empty directory")
	assert.ErrorIs(t, err, spamcheck.ErrIO)
}

func TestCache_OpenErrors(t *testing.T) {
	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"cache": [broken`), 0o600))
		_, err := Open(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, spamcheck.ErrSerialization))
		assert.False(t, errors.Is(err, spamcheck.ErrIO))
	})

	t.Run("wrong value shape", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"cache": {"abc": "spam"}}`), 0o600))
		_, err := Open(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, spamcheck.ErrSerialization))
	})

	t.Run("unreadable path", func(t *testing.T) {
		_, err := Open(t.TempDir()) // a directory
		require.Error(t, err)
		assert.True(t, errors.Is(err, spamcheck.ErrIO))
	})
}

func TestCache_PutErrors(t *testing.T) {
	t.Run("can't write file", func(t *testing.T) {
		sub := filepath.Join(t.TempDir(), "sub")
		c, err := Open(filepath.Join(sub, "cache.json"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(sub, []byte("x"), 0o600)) // a file where the directory should be

		err = c.Put("hello", spamcheck.Scores{Spam: 1, Ham: 2})
		require.Error(t, err)
		assert.True(t, errors.Is(err, spamcheck.ErrIO))

		s, ok := c.Get("hello")
		assert.True(t, ok, "memory updated even if the file is not")
		assert.Equal(t, spamcheck.Scores{Spam: 1, Ham: 2}, s)
	})

	t.Run("can't encode", func(t *testing.T) {
		c, err := Open(filepath.Join(t.TempDir(), "cache.json"))
		require.NoError(t, err)
		err = c.Put("hello", spamcheck.Scores{Spam: math.NaN(), Ham: 2})
		require.Error(t, err)
		assert.True(t, errors.Is(err, spamcheck.ErrSerialization))
	})
}

func TestCache_ConcurrentPut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Put(fmt.Sprintf("msg-%d", i), spamcheck.Scores{Spam: float64(i), Ham: 1}))
			_, _ = c.Get(fmt.Sprintf("msg-%d", i/2))
		}(i)
	}
	wg.Wait()

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 50, reopened.Len())
	for i := 0; i < 50; i++ {
		s, ok := reopened.Get(fmt.Sprintf("msg-%d", i))
		require.True(t, ok, i)
		assert.Equal(t, float64(i), s.Spam)
	}
}
