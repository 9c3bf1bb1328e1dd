package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/mcp-training/minecart/game/config"
	"github.com/wricardo/mcp-training/minecart/game/engine"
	"github.com/wricardo/mcp-training/minecart/game/session"
	"github.com/wricardo/mcp-training/minecart/logging"
	"github.com/wricardo/mcp-training/minecart/transport/websocket"
)

func TestMain(m *testing.M) {
	logging.Discard()
	os.Exit(m.Run())
}

func testOptions(t *testing.T) options {
	t.Helper()
	return options{
		host:        "127.0.0.1",
		port:        0,
		tracksDir:   "tracks",
		sessionsDir: t.TempDir(),
	}
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "1.0.0", Version)
	assert.Equal(t, "Mine Cart Track Simulator", AppName)
}

func TestNewApp(t *testing.T) {
	app := newApp()

	names := map[string]bool{}
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"server", "stdio-mcp", "solve", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	t.Run("version command", func(t *testing.T) {
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out

		require.NoError(t, app.Run(context.Background(), []string{"minecart", "version"}))
		assert.Equal(t, "Mine Cart Track Simulator v1.0.0\n", out.String())
	})

	t.Run("unknown log format", func(t *testing.T) {
		app := newApp()
		app.Writer = io.Discard
		app.ErrWriter = io.Discard

		err := app.Run(context.Background(), []string{"minecart", "--log-format", "xml", "version"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "xml")
	})

	t.Run("solve needs a file", func(t *testing.T) {
		app := newApp()
		app.Writer = io.Discard
		app.ErrWriter = io.Discard

		err := app.Run(context.Background(), []string{"minecart", "solve"})
		require.Error(t, err)
	})
}

func TestSolveTrackFile(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{
			name: "switchyard",
			path: "tracks/classic.json",
			expected: []string{
				"Track: Classic (9 carts)",
				"First crash: 2,0 (tick 1)",
				"Last cart: 6,4 (tick 3)",
				"Crashes: 4",
			},
		},
		{
			name: "two carts leave no survivor",
			path: "tracks/example.txt",
			expected: []string{
				"Track: example (2 carts)",
				"First crash: 7,3 (tick 14)",
				"Last cart: none",
				"Crashes: 1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, solveTrackFile(&out, tt.path, 0, false))
			for _, line := range tt.expected {
				assert.Contains(t, out.String(), line)
			}
		})
	}

	t.Run("render draws crash sites", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, solveTrackFile(&out, "tracks/example.txt", 0, true))
		assert.Contains(t, out.String(), "| | |  X |  |")
	})

	t.Run("missing file", func(t *testing.T) {
		err := solveTrackFile(io.Discard, filepath.Join(t.TempDir(), "nope.json"), 0, false)
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("no carts", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.txt")
		require.NoError(t, os.WriteFile(path, []byte("/--\\\n\\--/\n"), 0644))

		err := solveTrackFile(io.Discard, path, 0, false)
		assert.ErrorIs(t, err, engine.ErrInvalidTrack)
	})
}

func TestInitializeServices(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc, err := initializeServices(ctx, testOptions(t))
	require.NoError(t, err)
	require.NotNil(t, svc.sim)

	configs, err := svc.sim.ListConfigs(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, configs)
	assert.Equal(t, "Classic", svc.configs.GetDefault().Name)
}

func TestInitializeServices_DefaultTrack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	opts := testOptions(t)
	opts.defaultTrack = "example"
	svc, err := initializeServices(ctx, opts)
	require.NoError(t, err)

	info, err := svc.sim.CreateSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "example", info.ConfigName)
	assert.Len(t, info.SimState.Carts, 2)

	opts.defaultTrack = "nope"
	_, err = initializeServices(ctx, opts)
	assert.ErrorIs(t, err, config.ErrConfigNotFound)
}

func TestInitializeServices_InvalidTracksDir(t *testing.T) {
	opts := testOptions(t)
	opts.tracksDir = filepath.Join(t.TempDir(), "missing")

	_, err := initializeServices(context.Background(), opts)
	assert.Error(t, err)
}

func TestRunHTTPServer_SavesSessionsOnShutdown(t *testing.T) {
	opts := testOptions(t)
	svc, err := initializeServices(context.Background(), opts)
	require.NoError(t, err)

	info, err := svc.sim.CreateSession(context.Background(), "classic")
	require.NoError(t, err)

	// a tick the service never saved
	sess, err := svc.sessions.Get(info.ID)
	require.NoError(t, err)
	_, err = sess.Engine.Tick()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, runHTTPServer(ctx, opts, svc))

	configs, err := config.NewManager(opts.tracksDir)
	require.NoError(t, err)
	persistence, err := session.NewFilePersistence(opts.sessionsDir, configs)
	require.NoError(t, err)
	restored, err := persistence.Load(info.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, restored.Engine.GetTick())
}

func TestPruneOrphanedSessions(t *testing.T) {
	configs, err := config.NewManager("tracks")
	require.NoError(t, err)

	dir := t.TempDir()
	persistence, err := session.NewFilePersistence(dir, configs)
	require.NoError(t, err)

	manager := session.NewManagerWithPersistence(persistence)
	_, err = manager.Create("kept", engine.DefaultTrackID, engine.DefaultTrackConfig())
	require.NoError(t, err)
	_, err = manager.Create("orphan", engine.DefaultTrackID, engine.DefaultTrackConfig())
	require.NoError(t, err)

	require.FileExists(t, filepath.Join(dir, "orphan.json"))
	require.NoError(t, os.Remove(filepath.Join(dir, "orphan.json")))

	assert.Equal(t, 1, pruneOrphanedSessions(manager, persistence))
	assert.Equal(t, 1, manager.Count())

	_, err = manager.Get("orphan")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	assert.Equal(t, 0, pruneOrphanedSessions(manager, nil))
}

func TestNewRouter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc, err := initializeServices(ctx, testOptions(t))
	require.NoError(t, err)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	srv := httptest.NewUnstartedServer(nil)
	srv.Config.Handler = newRouter(svc.sim, hub, "http://"+srv.Listener.Addr().String())
	srv.Start()
	t.Cleanup(srv.Close)

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("mcp rejects GET", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/mcp")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	mcpCall := func(t *testing.T, body string) string {
		t.Helper()
		resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(data)
	}

	t.Run("mcp initialize", func(t *testing.T) {
		out := mcpCall(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`)
		assert.Contains(t, out, "Mine Cart Simulator")
	})

	t.Run("mcp tools list", func(t *testing.T) {
		out := mcpCall(t, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
		assert.Contains(t, out, "create_session")
		assert.Contains(t, out, "run_until")
	})
}
