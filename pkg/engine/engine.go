// Package engine synchronizes tagged task notes with calendar events.
package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/notecal/pkg/config"
	"github.com/harrisonrobin/notecal/pkg/folders"
	"github.com/harrisonrobin/notecal/pkg/google"
	"github.com/harrisonrobin/notecal/pkg/mapping"
	"github.com/harrisonrobin/notecal/pkg/tasks"
	"github.com/harrisonrobin/notecal/pkg/vault"
)

// Gateway is the remote calendar as the engine uses it.
type Gateway interface {
	Get(ctx context.Context, eventID string) (*calendar.Event, error)
	Insert(ctx context.Context, event *calendar.Event) (string, error)
	Update(ctx context.Context, eventID string, event *calendar.Event) error
	Delete(ctx context.Context, eventID string) error
	ListAll(ctx context.Context) ([]*calendar.Event, error)
}

// Vault is the note store as the engine uses it.
type Vault interface {
	tasks.Store
	folders.Tree
	Read(n *vault.Note) (string, error)
	Write(n *vault.Note, content string) error
	WriteFrontMatter(n *vault.Note, data map[string]any) error
	Body(n *vault.Note) (string, error)
	Move(n *vault.Note, folder string) (*vault.Note, error)
	SaveCache() error
}

// Options configures an Engine.
type Options struct {
	// ErrorLog receives one line per failed task. Optional.
	ErrorLog io.Writer
	// ErrorLogPath is shown in summaries when ErrorLog is set.
	ErrorLogPath string
	// Progress is called after each task with the number done and the total.
	Progress func(done, total int)
	// Now overrides the clock.
	Now func() time.Time
}

// Engine runs sync passes. At most one pass runs at a time.
type Engine struct {
	vault   Vault
	gateway Gateway
	store   *config.Store
	opts    Options
	running atomic.Bool
}

// New creates an Engine. gateway may be nil when no credential exists; passes
// then fail their precondition check.
func New(v Vault, gateway Gateway, store *config.Store, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{vault: v, gateway: gateway, store: store, opts: opts}
}

func (e *Engine) acquire() error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrPassInFlight
	}
	return nil
}

func (e *Engine) release() { e.running.Store(false) }

func (e *Engine) progress(done, total int) {
	if e.opts.Progress != nil {
		e.opts.Progress(done, total)
	}
}

// Pairs returns the folder pairs under the configured task root.
func (e *Engine) Pairs() (folders.Pairs, error) {
	s := e.store.Get()
	return folders.FindPairs(e.vault, s.TaskFolderPath, s.SearchFolderName, s.DoneFolderName)
}

// plan runs the precondition checks and selects the pass candidates.
func (e *Engine) plan(s config.Settings, tag string, quick bool) ([]*tasks.Task, error) {
	if e.gateway == nil {
		return nil, configErrorf("calendar is not authorized, run `notecal auth` first")
	}
	if _, ok := s.FieldMappings.Key(mapping.RoleStatus); !ok {
		return nil, configErrorf("no field is mapped to the status role")
	}

	pairs, err := folders.FindPairs(e.vault, s.TaskFolderPath, s.SearchFolderName, s.DoneFolderName)
	if err != nil {
		return nil, fmt.Errorf("unable to scan task folders: %w", err)
	}
	if len(pairs) == 0 {
		return nil, configErrorf("no %s/%s folder pairs found under %q", s.SearchFolderName, s.DoneFolderName, s.TaskFolderPath)
	}

	found, err := tasks.NewExtractor(e.vault).Fetch(tag)
	if err != nil {
		return nil, err
	}
	scoped := tasks.Scope(found, pairs)
	if len(scoped) == 0 {
		return nil, configErrorf("no notes tagged %q found in %s folders", tag, s.SearchFolderName)
	}

	if !quick {
		return scoped, nil
	}
	checkpoint, ok := s.Checkpoint()
	if !ok {
		log.Info().Msg("no previous sync recorded, running a full pass")
		return scoped, nil
	}
	changed := ChangedSince(scoped, checkpoint)
	if len(changed) == 0 {
		return nil, configErrorf("no tasks changed since %s", checkpoint.Local().Format(time.RFC1123))
	}
	return changed, nil
}

// ChangedSince keeps the tasks whose note was created or modified strictly
// after checkpoint.
func ChangedSince(ts []*tasks.Task, checkpoint time.Time) []*tasks.Task {
	var out []*tasks.Task
	for _, t := range ts {
		if t.Note.Created.After(checkpoint) || t.Note.Modified.After(checkpoint) {
			out = append(out, t)
		}
	}
	return out
}

// Run performs one pass over the notes tagged tag. In quick mode only notes
// changed since the last pass are visited. Failures of individual tasks are
// collected in the Result; the returned error is reserved for preconditions.
// The checkpoint advances at the end of every pass that got past its
// preconditions, even if every task failed.
func (e *Engine) Run(ctx context.Context, tag string, quick bool) (*Result, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	start := e.opts.Now()
	s := e.store.Get()
	candidates, err := e.plan(s, tag, quick)
	if err != nil {
		return nil, err
	}

	res := &Result{Quick: quick, Total: len(candidates), ErrorLogPath: e.opts.ErrorLogPath}
	log.Info().Int("tasks", len(candidates)).Bool("quick", quick).Msg("starting sync pass")

	for i, t := range candidates {
		if err := e.syncTask(ctx, s, t, res); err != nil {
			log.Error().Err(err).Str("note", t.Note.Path).Msg("task failed")
			res.Errors = append(res.Errors, TaskError{Path: t.Note.Path, Err: err})
		}
		res.Processed++
		e.progress(i+1, len(candidates))
	}

	end := e.opts.Now()
	res.Duration = end.Sub(start)
	if err := writeErrorLog(e.opts.ErrorLog, end, "sync", res.Errors); err != nil {
		log.Warn().Err(err).Msg("could not write error log")
	}
	if err := e.vault.SaveCache(); err != nil {
		log.Warn().Err(err).Msg("could not save metadata cache")
	}
	if err := e.store.Update(func(st *config.Settings) { st.SetCheckpoint(end) }); err != nil {
		return res, fmt.Errorf("unable to record sync checkpoint: %w", err)
	}

	log.Info().Int("created", res.Created).Int("updated", res.Updated).Int("moved", res.Moved).
		Int("errors", len(res.Errors)).Dur("duration", res.Duration).Msg("sync pass finished")
	return res, nil
}

// syncTask drives one task through resolve, complete, update or create.
func (e *Engine) syncTask(ctx context.Context, s config.Settings, t *tasks.Task, res *Result) error {
	cfg := s.FieldMappings
	fields := mapping.Resolve(cfg, t.Data)

	var existing *calendar.Event
	if fields.EventID != "" {
		ev, err := e.gateway.Get(ctx, fields.EventID)
		switch {
		case err == nil:
			existing = ev
		case google.IsGone(err):
			log.Debug().Str("event", fields.EventID).Str("note", t.Note.Path).Msg("linked event was deleted remotely")
			res.Recreated++
		default:
			return err
		}
	}

	deleteStatus := strings.TrimSpace(s.DeleteStatus)
	if deleteStatus != "" && strings.TrimSpace(fields.Status) == deleteStatus {
		return e.complete(ctx, cfg, t, fields, existing, res)
	}

	body, err := e.vault.Body(t.Note)
	if err != nil {
		return err
	}
	event, err := mapping.MapToEvent(cfg, t.Data, mapping.Source{Name: t.Name, Body: body}, e.opts.Now())
	if err != nil {
		return err
	}

	if existing != nil {
		event.Id = existing.Id
		if err := e.gateway.Update(ctx, existing.Id, event); err != nil {
			return err
		}
		res.Updated++
		return nil
	}

	// A stale back-reference must not be sent as the new event's id.
	event.Id = ""
	id, err := e.gateway.Insert(ctx, event)
	if err != nil {
		return err
	}
	t.Data[cfg.EventIDKey()] = id
	if err := e.vault.WriteFrontMatter(t.Note, t.Data); err != nil {
		return fmt.Errorf("event %s created but not linked: %w", id, err)
	}
	res.Created++
	return nil
}

// complete removes a finished task's event and moves its note to the done
// folder of its pair.
func (e *Engine) complete(ctx context.Context, cfg mapping.Config, t *tasks.Task, fields mapping.Fields, existing *calendar.Event, res *Result) error {
	if existing != nil {
		if err := e.gateway.Delete(ctx, existing.Id); err != nil {
			return err
		}
		res.Deleted++
	}
	if fields.EventID != "" {
		delete(t.Data, cfg.EventIDKey())
		if err := e.vault.WriteFrontMatter(t.Note, t.Data); err != nil {
			return err
		}
	}

	dest := doneFolder(t)
	moved, err := e.vault.Move(t.Note, dest)
	if err != nil {
		mErr := &MoveError{Path: t.Note.Path, Dest: dest, Err: err}
		log.Error().Err(err).Str("note", t.Note.Path).Str("dest", dest).Msg("completed task could not be moved")
		return mErr
	}
	t.Note = moved
	res.Moved++
	return nil
}

// doneFolder maps the note's folder inside its search folder onto the done
// folder, keeping any subfolders.
func doneFolder(t *tasks.Task) string {
	rel := strings.TrimPrefix(t.Note.Dir(), t.Pair.SearchPath)
	return t.Pair.DonePath + rel
}
