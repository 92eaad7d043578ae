package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/spam-bayes/lib/bayes"
	"github.com/umputun/spam-bayes/lib/scorecache"
	"github.com/umputun/spam-bayes/lib/spamcheck"
)

// balanced dataset, both class totals are 11
const testDataset = "spam\twin money now\nham\thi there friend\nspam\twin money\nham\thi friend\n"

// prepareModel creates dataset and model files in a temp dir, returns options pointing to them
func prepareModel(t *testing.T) options {
	t.Helper()
	dir := t.TempDir()
	datasetPath := filepath.Join(dir, "dataset.txt")
	require.NoError(t, os.WriteFile(datasetPath, []byte(testDataset), 0o600))

	var opts options
	opts.CreateModel.DatasetPath = datasetPath
	opts.CreateModel.ModelPath = filepath.Join(dir, "model.json")
	require.NoError(t, execute(context.Background(), io.Discard, "create-model-from-dataset", opts))

	opts.FromModel = opts.CreateModel.ModelPath
	opts.Cache.Type = "json"
	opts.Cache.File = filepath.Join(dir, "cache.json")
	return opts
}

func TestCreateModel(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		opts := prepareModel(t)
		fh, err := os.Open(opts.FromModel)
		require.NoError(t, err)
		defer fh.Close()
		m, err := bayes.NewFromPreTrained(fh)
		require.NoError(t, err)
		counter, ok := m.Counter("money")
		require.True(t, ok)
		assert.Equal(t, bayes.Counter{Ham: 1, Spam: 3}, counter)
	})

	t.Run("missing dataset", func(t *testing.T) {
		dir := t.TempDir()
		err := createModel(createModelCmd{DatasetPath: filepath.Join(dir, "nope.txt"), ModelPath: filepath.Join(dir, "m.json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("model exists", func(t *testing.T) {
		opts := prepareModel(t)
		err := createModel(opts.CreateModel)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("bad dataset removes model", func(t *testing.T) {
		dir := t.TempDir()
		datasetPath := filepath.Join(dir, "dataset.txt")
		require.NoError(t, os.WriteFile(datasetPath, []byte("spam\twin\nno tab here\n"), 0o600))
		modelPath := filepath.Join(dir, "model.json")
		err := createModel(createModelCmd{DatasetPath: datasetPath, ModelPath: modelPath})
		require.Error(t, err)
		assert.ErrorIs(t, err, spamcheck.ErrInvalidDatasetFormat)
		_, serr := os.Stat(modelPath)
		assert.True(t, os.IsNotExist(serr), "incomplete model removed")
	})
}

func TestExecute_Message(t *testing.T) {
	opts := prepareModel(t)

	t.Run("spam", func(t *testing.T) {
		opts := opts
		opts.Message = "win money"
		out := bytes.Buffer{}
		require.NoError(t, execute(context.Background(), &out, "", opts))
		assert.Equal(t, "The message - \"win money\", is indeed spam!\n", out.String())

		c, err := scorecache.Open(opts.Cache.File)
		require.NoError(t, err)
		_, ok := c.Get("win money")
		assert.True(t, ok, "stored in cache")
	})

	t.Run("ham", func(t *testing.T) {
		opts := opts
		opts.Message = "see you friend"
		out := bytes.Buffer{}
		require.NoError(t, execute(context.Background(), &out, "", opts))
		assert.Equal(t, "The message - \"see you friend\", is indeed ham!\n", out.String())
	})

	t.Run("from file", func(t *testing.T) {
		opts := opts
		msgFile := filepath.Join(t.TempDir(), "msg.txt")
		require.NoError(t, os.WriteFile(msgFile, []byte("win money now\nfree prize\n"), 0o600))
		opts.MessageFromFile = msgFile
		out := bytes.Buffer{}
		require.NoError(t, execute(context.Background(), &out, "", opts))
		assert.Equal(t, "The message from file - \""+msgFile+"\", is indeed spam!\n", out.String())
	})

	t.Run("no message", func(t *testing.T) {
		err := execute(context.Background(), io.Discard, "", opts)
		assert.EqualError(t, err, "either --message or --message-from-file is required")
	})

	t.Run("both messages", func(t *testing.T) {
		opts := opts
		opts.Message = "hi"
		opts.MessageFromFile = "some.txt"
		err := execute(context.Background(), io.Discard, "", opts)
		assert.EqualError(t, err, "--message and --message-from-file are mutually exclusive")
	})

	t.Run("missing model", func(t *testing.T) {
		opts := opts
		opts.Message = "hi"
		opts.FromModel = filepath.Join(t.TempDir(), "nope.json")
		err := execute(context.Background(), io.Discard, "", opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("missing message file", func(t *testing.T) {
		opts := opts
		opts.MessageFromFile = filepath.Join(t.TempDir(), "nope.txt")
		err := execute(context.Background(), io.Discard, "", opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "can't open message file")
	})
}

func TestExecute_DBCache(t *testing.T) {
	opts := prepareModel(t)
	opts.Cache.Type = "db"
	opts.Cache.DB = filepath.Join(t.TempDir(), "cache.db")
	opts.Cache.GID = "gr1"
	opts.Cache.Timeout = time.Second
	opts.Message = "win money"

	out := bytes.Buffer{}
	require.NoError(t, execute(context.Background(), &out, "", opts))
	assert.Equal(t, "The message - \"win money\", is indeed spam!\n", out.String())

	require.NoError(t, execute(context.Background(), io.Discard, "clean-cache", opts))

	opts.Cache.DB = "unsupported://db"
	err := execute(context.Background(), io.Discard, "", opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't make score cache")
}

func TestExecute_RedisCacheUnavailable(t *testing.T) {
	opts := prepareModel(t)
	opts.Cache.Type = "redis"
	opts.Cache.Redis = "redis://127.0.0.1:1/0"
	opts.Cache.Timeout = 100 * time.Millisecond
	opts.Message = "win money"

	err := execute(context.Background(), io.Discard, "", opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestExecute_CleanCache(t *testing.T) {
	opts := prepareModel(t)
	opts.Message = "win money"
	require.NoError(t, execute(context.Background(), io.Discard, "", opts))
	_, err := os.Stat(opts.Cache.File)
	require.NoError(t, err)

	require.NoError(t, execute(context.Background(), io.Discard, "clean-cache", opts))
	_, err = os.Stat(opts.Cache.File)
	assert.True(t, os.IsNotExist(err))
}

func TestExecute_CleanCorruptCache(t *testing.T) {
	opts := prepareModel(t)
	require.NoError(t, os.WriteFile(opts.Cache.File, []byte(`{"cache":{broken`), 0o600))

	opts.Message = "win money"
	err := execute(context.Background(), io.Discard, "", opts)
	require.Error(t, err, "corrupt cache can't be used")
	assert.ErrorIs(t, err, spamcheck.ErrSerialization)

	require.NoError(t, execute(context.Background(), io.Discard, "clean-cache", opts))
	assert.NoFileExists(t, opts.Cache.File)
	require.NoError(t, execute(context.Background(), io.Discard, "clean-cache", opts), "nothing to clean")

	require.NoError(t, execute(context.Background(), io.Discard, "", opts), "usable after clean")
	assert.FileExists(t, opts.Cache.File)
}

func TestExecute_Server(t *testing.T) {
	opts := prepareModel(t)
	opts.Server.Listen = "127.0.0.1:9878"
	opts.Server.HistorySize = 10
	opts.Server.RateLimit = 100
	opts.Server.WatchModel = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- execute(ctx, io.Discard, "server", opts) }()
	time.Sleep(200 * time.Millisecond)

	resp, err := http.Post("http://127.0.0.1:9878/check", "application/json", strings.NewReader(`{"msg":"win money"}`))
	require.NoError(t, err)
	var res spamcheck.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	assert.True(t, res.Spam)

	resp, err = http.Get("http://127.0.0.1:9878/history")
	require.NoError(t, err)
	var history []spamcheck.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	resp.Body.Close()
	require.Len(t, history, 1)
	assert.Equal(t, "win money", history[0].Msg)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server not stopped")
	}
}

func TestMakeVerdictLogger(t *testing.T) {
	file, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)

	logger := makeVerdictLogger(file)
	logger(spamcheck.NewResponse("Test message\nblah blah  \n\n\n", spamcheck.Scores{Spam: 0.5, Ham: 0.25}, true))
	require.NoError(t, file.Close())

	file, err = os.Open(file.Name())
	require.NoError(t, err)
	defer file.Close()
	scanner := bufio.NewScanner(file)
	lines := 0
	for scanner.Scan() {
		lines++
		var logEntry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &logEntry))
		assert.Equal(t, "Test message blah blah", logEntry["text"])
		assert.Equal(t, true, logEntry["spam"])
		assert.Equal(t, true, logEntry["cached"])
		assert.InDelta(t, 0.5, logEntry["spam_score"], 1e-9)
		assert.InDelta(t, 0.25, logEntry["ham_score"], 1e-9)
	}
	assert.NoError(t, scanner.Err())
	assert.Equal(t, 1, lines)
}

func TestLogColors(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = noColor }()

	m := logColors()
	for name, fn := range map[string]func(string) string{"error": m.ErrorFunc, "warn": m.WarnFunc, "info": m.InfoFunc,
		"debug": m.DebugFunc, "caller": m.CallerFunc, "time": m.TimeFunc} {
		require.NotNil(t, fn, name)
		out := fn("text")
		assert.Contains(t, out, "text", name)
		assert.NotEqual(t, "text", out, name)
	}
}

func TestMakeVerdictLogWriter(t *testing.T) {
	setupLog(true, "super-secret-token")
	t.Run("happy path", func(t *testing.T) {
		file, err := os.CreateTemp(t.TempDir(), "log")
		require.NoError(t, err)
		require.NoError(t, file.Close())

		var opts options
		opts.Logger.Enabled = true
		opts.Logger.FileName = file.Name()
		opts.Logger.MaxSize = "1M"
		opts.Logger.MaxBackups = 1

		writer, err := makeVerdictLogWriter(opts)
		require.NoError(t, err)
		_, err = writer.Write([]byte("Test log entry\n"))
		assert.NoError(t, err)
		assert.NoError(t, writer.Close())

		content, err := os.ReadFile(file.Name())
		require.NoError(t, err)
		assert.Equal(t, "Test log entry\n", string(content))
	})

	t.Run("failed on wrong size", func(t *testing.T) {
		var opts options
		opts.Logger.Enabled = true
		opts.Logger.FileName = "/tmp"
		opts.Logger.MaxSize = "1f"
		writer, err := makeVerdictLogWriter(opts)
		assert.Error(t, err)
		assert.Nil(t, writer)
	})

	t.Run("disabled", func(t *testing.T) {
		var opts options
		writer, err := makeVerdictLogWriter(opts)
		assert.NoError(t, err)
		assert.IsType(t, nopWriteCloser{}, writer)
	})
}

func TestSizeParse(t *testing.T) {
	tests := []struct {
		inp     string
		want    uint64
		wantErr bool
	}{
		{inp: "100", want: 100},
		{inp: "1k", want: 1024},
		{inp: "10M", want: 10 * 1024 * 1024},
		{inp: "2g", want: 2 * 1024 * 1024 * 1024},
		{inp: "1T", want: 1024 * 1024 * 1024 * 1024},
		{inp: "", wantErr: true},
		{inp: "1f", wantErr: true},
		{inp: "xm", wantErr: true},
		{inp: " 64k ", want: 64 * 1024},
		{inp: "k", wantErr: true},
		{inp: "-1m", wantErr: true},
		{inp: "16777215T", want: 16777215 << 40},
		{inp: "16777216T", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.inp, func(t *testing.T) {
			got, err := sizeParse(tt.inp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
