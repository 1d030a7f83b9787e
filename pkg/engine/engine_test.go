package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/notecal/pkg/config"
	"github.com/harrisonrobin/notecal/pkg/google"
	"github.com/harrisonrobin/notecal/pkg/vault"
)

type fakeGateway struct {
	events    map[string]*calendar.Event
	next      int
	calls     []string
	insertErr map[string]error
	deleteErr error
	listed    []*calendar.Event
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{events: map[string]*calendar.Event{}, insertErr: map[string]error{}}
}

func (g *fakeGateway) Get(_ context.Context, id string) (*calendar.Event, error) {
	g.calls = append(g.calls, "get "+id)
	ev, ok := g.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, google.ErrNotFound)
	}
	return ev, nil
}

func (g *fakeGateway) Insert(_ context.Context, ev *calendar.Event) (string, error) {
	g.calls = append(g.calls, "insert "+ev.Summary)
	if err := g.insertErr[ev.Summary]; err != nil {
		return "", err
	}
	if ev.Id != "" {
		return "", errors.New("insert with client id")
	}
	g.next++
	id := fmt.Sprintf("ev%d", g.next)
	ev.Id = id
	g.events[id] = ev
	return id, nil
}

func (g *fakeGateway) Update(_ context.Context, id string, ev *calendar.Event) error {
	g.calls = append(g.calls, "update "+id)
	if _, ok := g.events[id]; !ok {
		return google.ErrNotFound
	}
	g.events[id] = ev
	return nil
}

func (g *fakeGateway) Delete(_ context.Context, id string) error {
	g.calls = append(g.calls, "delete "+id)
	if g.deleteErr != nil {
		return g.deleteErr
	}
	if _, ok := g.events[id]; !ok {
		return google.ErrNotFound
	}
	delete(g.events, id)
	return nil
}

func (g *fakeGateway) ListAll(context.Context) ([]*calendar.Event, error) {
	g.calls = append(g.calls, "list")
	if g.listed != nil {
		return g.listed, nil
	}
	var out []*calendar.Event
	for _, ev := range g.events {
		out = append(out, ev)
	}
	return out, nil
}

type fixture struct {
	root   string
	vault  *vault.Vault
	store  *config.Store
	gw     *fakeGateway
	errlog *bytes.Buffer
	engine *Engine
}

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	v, err := vault.Open(root, nil)
	require.NoError(t, err)

	s := config.Defaults()
	s.VaultPath = root
	store := config.NewStore(filepath.Join(t.TempDir(), "settings.json"), s)

	f := &fixture{root: root, vault: v, store: store, gw: newFakeGateway(), errlog: &bytes.Buffer{}}
	f.engine = New(v, f.gw, store, Options{
		ErrorLog:     f.errlog,
		ErrorLogPath: "sync-errors.log",
		Now:          func() time.Time { return fixedNow },
	})
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

func (f *fixture) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(rel)))
	return err == nil
}

func (f *fixture) mkdir(t *testing.T, rel string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, filepath.FromSlash(rel)), 0o755))
}

func TestRunCreatesEventAndLinksNote(t *testing.T) {
	f := newFixture(t)
	f.mkdir(t, "Tasks/Work/DONE")
	f.write(t, "Tasks/Work/OPEN/Write report.md",
		"---\ntags: [task]\nstart: 2024-05-02T10:00\nend: 2024-05-02T11:00\nstatus: todo\n---\nDraft the Q2 numbers.\n")

	res, err := f.engine.Run(context.Background(), "task", false)
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Created)

	require.Len(t, f.gw.events, 1)
	ev := f.gw.events["ev1"]
	require.NotNil(t, ev)
	assert.Equal(t, "Write report", ev.Summary)
	assert.Equal(t, "Draft the Q2 numbers.", ev.Description)
	assert.Equal(t, "2024-05-02T10:00:00Z", ev.Start.DateTime)

	assert.Contains(t, f.read(t, "Tasks/Work/OPEN/Write report.md"), "googleEventId: ev1")

	cp, ok := f.store.Get().Checkpoint()
	require.True(t, ok)
	assert.True(t, cp.Equal(fixedNow))
}

func TestRunUpdatesLinkedEvent(t *testing.T) {
	f := newFixture(t)
	f.mkdir(t, "Tasks/DONE")
	f.gw.events["abc"] = &calendar.Event{Id: "abc", Summary: "old"}
	f.write(t, "Tasks/OPEN/Plan.md",
		"---\ntags: [task]\ntitle: New title\nstart: 2024-05-03\nend: 2024-05-04\ngoogleEventId: abc\n---\n")

	res, err := f.engine.Run(context.Background(), "task", false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Created)

	ev := f.gw.events["abc"]
	assert.Equal(t, "abc", ev.Id)
	assert.Equal(t, "New title", ev.Summary)
	assert.Equal(t, "2024-05-03", ev.Start.Date)
	assert.Equal(t, []string{"get abc", "update abc"}, f.gw.calls)
}

func TestRunRecreatesEventDeletedRemotely(t *testing.T) {
	f := newFixture(t)
	f.mkdir(t, "Tasks/DONE")
	f.write(t, "Tasks/OPEN/Call.md", "---\ntags: [task]\ngoogleEventId: gone\n---\n")

	res, err := f.engine.Run(context.Background(), "task", false)
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Recreated)

	content := f.read(t, "Tasks/OPEN/Call.md")
	assert.Contains(t, content, "googleEventId: ev1")
	assert.NotContains(t, content, "gone")
}

func TestRunCompletesTaskWithEvent(t *testing.T) {
	f := newFixture(t)
	f.mkdir(t, "Tasks/DONE")
	f.gw.events["abc"] = &calendar.Event{Id: "abc"}
	f.write(t, "Tasks/OPEN/Ship.md", "---\ntags: [task]\nstatus: done\ngoogleEventId: abc\n---\nbody\n")

	res, err := f.engine.Run(context.Background(), "task", false)
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 1, res.Moved)
	assert.Empty(t, f.gw.events)

	assert.False(t, f.exists("Tasks/OPEN/Ship.md"))
	content := f.read(t, "Tasks/DONE/Ship.md")
	assert.NotContains(t, content, "googleEventId")
	assert.Contains(t, content, "status: done")
}

func TestRunCompletesUnlinkedTaskWithoutRemoteCalls(t *testing.T) {
	f := newFixture(t)
	f.mkdir(t, "Tasks/DONE")
	f.write(t, "Tasks/OPEN/Ship.md", "---\ntags: [task]\nstatus: ' done '\n---\n")

	res, err := f.engine.Run(context.Background(), "task", false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Moved)
	assert.Empty(t, f.gw.calls)
	assert.True(t, f.exists("Tasks/DONE/Ship.md"))

	// The note now sits in DONE, so a second pass has nothing to do.
	_, err = f.engine.Run(context.Background(), "task", false)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, f.gw.calls)
}

func TestRunCompletesIntoOwnPair(t *testing.T) {
	f := newFixture(t)
	f.mkdir(t, "Tasks/ProjectA/DONE")
	f.mkdir(t, "Tasks/ProjectB/DONE")
	f.write(t, "Tasks/ProjectA/OPEN/a.md", "---\ntags: [task]\nstatus: done\n---\n")
	f.write(t, "Tasks/ProjectB/OPEN/sub/b.md", "---\ntags: [task]\nstatus: done\n---\n")

	res, err := f.engine.Run(context.Background(), "task", false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Moved)
	assert.True(t, f.exists("Tasks/ProjectA/DONE/a.md"))
	assert.True(t, f.exists("Tasks/ProjectB/DONE/sub/b.md"))
	assert.False(t, f.exists("Tasks/ProjectA/DONE/b.md"))
}

func TestRunMoveConflictIsTaskError(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Tasks/DONE/Ship.md", "already here")
	f.write(t, "Tasks/OPEN/Ship.md", "---\ntags: [task]\nstatus: done\n---\n")

	res, err := f.engine.Run(context.Background(), "task", false)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	var mErr *MoveError
	require.ErrorAs(t, res.Errors[0].Err, &mErr)
	assert.ErrorIs(t, mErr, vault.ErrExists)
	assert.True(t, f.exists("Tasks/OPEN/Ship.md"))
}

func TestRunIsolatesTaskFailures(t *testing.T) {
	f := newFixture(t)
	f.mkdir(t, "Tasks/DONE")
	f.write(t, "Tasks/OPEN/one.md", "---\ntags: [task]\n---\n")
	f.write(t, "Tasks/OPEN/two.md", "---\ntags: [task]\n---\n")
	f.write(t, "Tasks/OPEN/three.md", "---\ntags: [task]\nstart: next tuesday\n---\n")
	f.write(t, "Tasks/OPEN/four.md", "---\ntags: [task]\n---\n")
	f.write(t, "Tasks/OPEN/five.md", "---\ntags: [task]\n---\n")
	f.gw.insertErr["two"] = errors.New("quota exceeded")

	var progress []int
	f.engine.opts.Progress = func(done, total int) {
		assert.Equal(t, 5, total)
		progress = append(progress, done)
	}

	res, err := f.engine.Run(context.Background(), "task", false)
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, 5, res.Processed)
	assert.Equal(t, 3, res.Created)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, progress)

	log := f.errlog.String()
	assert.Contains(t, log, "Tasks/OPEN/three.md")
	assert.Contains(t, log, "Tasks/OPEN/two.md: quota exceeded")
	assert.Contains(t, res.Summary(), "Sync completed with 2 errors")
	assert.Contains(t, res.Summary(), "sync-errors.log")

	_, ok := f.store.Get().Checkpoint()
	assert.True(t, ok)
}

func TestRunAdvancesCheckpointWhenEverythingFails(t *testing.T) {
	f := newFixture(t)
	f.mkdir(t, "Tasks/DONE")
	f.write(t, "Tasks/OPEN/one.md", "---\ntags: [task]\ngoogleEventId: x\n---\n")
	f.engine.gateway = &failingGateway{}

	res, err := f.engine.Run(context.Background(), "task", false)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)

	cp, ok := f.store.Get().Checkpoint()
	require.True(t, ok)
	assert.True(t, cp.Equal(fixedNow))
}

type failingGateway struct{ fakeGateway }

func (failingGateway) Get(context.Context, string) (*calendar.Event, error) {
	return nil, errors.New("boom")
}

func TestRunPreconditions(t *testing.T) {
	t.Run("no gateway", func(t *testing.T) {
		f := newFixture(t)
		f.engine.gateway = nil
		_, err := f.engine.Run(context.Background(), "task", false)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Reason, "not authorized")
	})

	t.Run("status unmapped", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Update(func(s *config.Settings) {
			delete(s.FieldMappings, "status")
		}))
		_, err := f.engine.Run(context.Background(), "task", false)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Reason, "status")
	})

	t.Run("no pairs", func(t *testing.T) {
		f := newFixture(t)
		f.write(t, "Tasks/OPEN/a.md", "---\ntags: [task]\n---\n")
		_, err := f.engine.Run(context.Background(), "task", false)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Reason, "folder pairs")
	})

	t.Run("no tagged notes", func(t *testing.T) {
		f := newFixture(t)
		f.mkdir(t, "Tasks/DONE")
		f.write(t, "Tasks/OPEN/a.md", "---\ntags: [other]\n---\n")
		f.write(t, "Inbox/b.md", "---\ntags: [task]\n---\n")
		_, err := f.engine.Run(context.Background(), "task", false)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("checkpoint untouched", func(t *testing.T) {
		f := newFixture(t)
		f.engine.gateway = nil
		_, _ = f.engine.Run(context.Background(), "task", false)
		_, ok := f.store.Get().Checkpoint()
		assert.False(t, ok)
	})
}

func TestRunQuickPicksChangedNotes(t *testing.T) {
	f := newFixture(t)
	f.mkdir(t, "Tasks/DONE")
	f.write(t, "Tasks/OPEN/old.md", "---\ntags: [task]\n---\n")
	fresh := f.write(t, "Tasks/OPEN/fresh.md", "---\ntags: [task]\n---\n")

	checkpoint := time.Now().Add(time.Hour)
	require.NoError(t, f.store.Update(func(s *config.Settings) { s.SetCheckpoint(checkpoint) }))
	later := checkpoint.Add(time.Minute)
	require.NoError(t, os.Chtimes(fresh, later, later))

	res, err := f.engine.Run(context.Background(), "task", true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, []string{"insert fresh"}, f.gw.calls)
}

func TestRunQuickWithNothingChanged(t *testing.T) {
	f := newFixture(t)
	f.mkdir(t, "Tasks/DONE")
	f.write(t, "Tasks/OPEN/old.md", "---\ntags: [task]\n---\n")
	require.NoError(t, f.store.Update(func(s *config.Settings) { s.SetCheckpoint(time.Now().Add(time.Hour)) }))

	_, err := f.engine.Run(context.Background(), "task", true)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "no tasks changed")
	assert.Empty(t, f.gw.calls)
}

func TestRunQuickWithoutCheckpointIsFull(t *testing.T) {
	f := newFixture(t)
	f.mkdir(t, "Tasks/DONE")
	f.write(t, "Tasks/OPEN/a.md", "---\ntags: [task]\n---\n")
	f.write(t, "Tasks/OPEN/b.md", "---\ntags: [task]\n---\n")

	res, err := f.engine.Run(context.Background(), "task", true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
}

func TestRunRejectsConcurrentPass(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.acquire())
	_, err := f.engine.Run(context.Background(), "task", false)
	assert.ErrorIs(t, err, ErrPassInFlight)
	_, err = f.engine.Cleanup(context.Background())
	assert.ErrorIs(t, err, ErrPassInFlight)

	f.engine.release()
	f.engine.gateway = nil
	_, err = f.engine.Run(context.Background(), "task", false)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestChangedSince(t *testing.T) {
	cp := fixedNow
	mk := func(created, modified time.Time) *vault.Note {
		return &vault.Note{Path: "n.md", Created: created, Modified: modified}
	}
	before, after := cp.Add(-time.Minute), cp.Add(time.Minute)

	ts := tasksOf(mk(before, before), mk(after, before), mk(before, after), mk(cp, cp))
	got := ChangedSince(ts, cp)
	require.Len(t, got, 2)
	assert.Same(t, ts[1], got[0])
	assert.Same(t, ts[2], got[1])
}
