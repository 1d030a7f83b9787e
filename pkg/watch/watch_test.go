package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevant(t *testing.T) {
	w := &Watcher{DoneName: "DONE", roots: []string{"/v/Tasks/OPEN", "/home/u/.notes/vault/Tasks/OPEN", "/srv/DONE/Tasks/OPEN"}}
	cases := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"note write", fsnotify.Event{Name: "/v/Tasks/OPEN/a.md", Op: fsnotify.Write}, true},
		{"note rename", fsnotify.Event{Name: "/v/Tasks/OPEN/a.md", Op: fsnotify.Rename}, true},
		{"chmod", fsnotify.Event{Name: "/v/Tasks/OPEN/a.md", Op: fsnotify.Chmod}, false},
		{"other file", fsnotify.Event{Name: "/v/Tasks/OPEN/a.png", Op: fsnotify.Write}, false},
		{"done folder", fsnotify.Event{Name: "/v/Tasks/DONE/a.md", Op: fsnotify.Create}, false},
		{"hidden", fsnotify.Event{Name: "/v/Tasks/OPEN/.a.md.swp", Op: fsnotify.Write}, false},
		{"new folder", fsnotify.Event{Name: "/v/Tasks/OPEN/sub", Op: fsnotify.Create}, true},
		{"hidden ancestor", fsnotify.Event{Name: "/home/u/.notes/vault/Tasks/OPEN/a.md", Op: fsnotify.Write}, true},
		{"ancestor named like done", fsnotify.Event{Name: "/srv/DONE/Tasks/OPEN/a.md", Op: fsnotify.Write}, true},
		{"done below root", fsnotify.Event{Name: "/v/Tasks/OPEN/sub/DONE/a.md", Op: fsnotify.Write}, false},
		{"hidden below root", fsnotify.Event{Name: "/v/Tasks/OPEN/.trash/a.md", Op: fsnotify.Write}, false},
		{"outside roots", fsnotify.Event{Name: "/v/Inbox/a.md", Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, w.relevant(tc.ev))
		})
	}
}

func TestRunDebouncesBursts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".hidden", "OPEN")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	var runs atomic.Int32
	w, err := New(func(context.Context) error {
		runs.Add(1)
		return nil
	}, "DONE")
	require.NoError(t, err)
	w.Quiet = 150 * time.Millisecond
	require.NoError(t, w.Add(dir))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte{byte('a' + i)}, 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	cancel()
	require.NoError(t, <-done)
}
