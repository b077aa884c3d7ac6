package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-pkgz/repeater"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/randlist/app/bridge"
	"github.com/umputun/randlist/app/storage"
)

func Test_setupLogsWithLogsDisabled(t *testing.T) {
	opts.Log.Enabled = false
	assert.Equal(t, os.Stdout, setupLogs())
}

func Test_setupLogsToFile(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	opts.Log.Enabled = true
	opts.Log.Filename = tmpfile.Name()
	opts.Log.MaxSize = 100
	opts.Log.MaxBackups = 7
	opts.Log.MaxAge = 0
	opts.Log.EnabledCompress = false
	defer func() { opts.Log.Enabled, opts.Log.Filename = false, "" }()

	out := setupLogs()
	assert.IsType(t, &lumberjack.Logger{}, out)

	logger := out.(*lumberjack.Logger)
	assert.Equal(t, tmpfile.Name(), logger.Filename)
	assert.Equal(t, 100, logger.MaxSize)
	assert.Equal(t, 7, logger.MaxBackups)
	assert.Equal(t, 0, logger.MaxAge)
	assert.False(t, logger.Compress)
}

func Test_makeStore(t *testing.T) {
	tmpDir := t.TempDir()
	tbl := []struct {
		typ, path string
		want      any
		err       bool
	}{
		{"memory", "", &storage.Memory{}, false},
		{"file", filepath.Join(tmpDir, "files"), &storage.File{}, false},
		{"sqlite", filepath.Join(tmpDir, "test.db"), &storage.SQLite{}, false},
		{"sqlite", "/invalid/path/that/does/not/exist/test.db", nil, true},
		{"redis", "", nil, true},
	}

	for _, tt := range tbl {
		t.Run(tt.typ, func(t *testing.T) {
			opts.Store.Type, opts.Store.Path = tt.typ, tt.path
			store, closer, err := makeStore()
			defer closer()
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, store)
		})
	}
}

func Test_makeRepeater(t *testing.T) {
	opts.Repeater.Attempts = 1
	assert.IsType(t, &repeater.Repeater{}, makeRepeater())

	opts.Repeater.Attempts, opts.Repeater.Duration, opts.Repeater.Factor = 3, time.Millisecond, 2
	rptr := makeRepeater()
	calls := 0
	err := rptr.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("fail %d", calls)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	opts.Repeater.Attempts = 1
}

func Test_makeWatchDir(t *testing.T) {
	opts.Update.Enabled, opts.Web.StaticDir = false, "/srv/bundle"
	assert.Equal(t, "", makeWatchDir())
	opts.Update.Enabled = true
	assert.Equal(t, "/srv/bundle", makeWatchDir())
	opts.Update.Enabled, opts.Web.StaticDir = false, ""
}

func Test_runSaveAndRestore(t *testing.T) {
	tmpDir := t.TempDir()
	opts.Store.Type, opts.Store.Path, opts.Store.Key = "sqlite", filepath.Join(tmpDir, "randlist.db"), bridge.DefaultKey
	opts.Codec, opts.Node = "json", "root"
	opts.Web.SaveRate, opts.Web.StaticDir, opts.Web.AuthHash = 100, "", ""
	opts.Update.Enabled, opts.Update.Schedule = false, "@every 1m"
	opts.Repeater.Attempts = 1

	// first run, nothing saved yet
	url, stop := startRun(t)
	assert.JSONEq(t, `{"node":"root","state":null}`, getFlags(t, url))

	req, err := http.NewRequest(http.MethodPut, url+"/api/v1/state", strings.NewReader(`{"items":["a","b"],"order":"shuffled"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// stop right away, the accepted snapshot is still saved on the way out
	stop()

	// restart, state restored
	url, stop = startRun(t)
	defer stop()
	var flags bridge.Flags
	require.NoError(t, json.Unmarshal([]byte(getFlags(t, url)), &flags))
	assert.Equal(t, bridge.Flags{Node: "root", State: map[string]any{"items": []any{"a", "b"}, "order": "shuffled"}}, flags)
}

// startRun runs the whole app on a random port and returns its url with stop function
func startRun(t *testing.T) (url string, stop func()) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	opts.Web.Address = fmt.Sprintf("127.0.0.1:%d", port)
	url = fmt.Sprintf("http://127.0.0.1:%d", port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/api/v1/flags")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	return url, func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("run did not stop in time")
		}
	}
}

func getFlags(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url + "/api/v1/flags")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
