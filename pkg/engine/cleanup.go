package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/harrisonrobin/notecal/pkg/google"
	"github.com/harrisonrobin/notecal/pkg/vault"
)

// Cleanup deletes every event in the calendar and strips the matching
// back-reference line from every note. It sweeps all notes once per event,
// and only the first google.MaxListResults events are visited.
func (e *Engine) Cleanup(ctx context.Context) (*CleanupResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	if e.gateway == nil {
		return nil, configErrorf("calendar is not authorized, run `notecal auth` first")
	}
	key := e.store.Get().FieldMappings.EventIDKey()

	events, err := e.gateway.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	notes, err := e.vault.Notes()
	if err != nil {
		return nil, err
	}

	res := &CleanupResult{Listed: len(events), ErrorLogPath: e.opts.ErrorLogPath}
	for i, ev := range events {
		if err := e.gateway.Delete(ctx, ev.Id); err != nil && !google.IsGone(err) {
			log.Error().Err(err).Str("event", ev.Id).Msg("could not delete event")
			res.Errors = append(res.Errors, TaskError{Path: "event " + ev.Id, Err: err})
			e.progress(i+1, len(events))
			continue
		}
		res.Deleted++

		for _, n := range notes {
			cleaned, err := e.unlink(n, key, ev.Id)
			if err != nil {
				res.Errors = append(res.Errors, TaskError{Path: n.Path, Err: err})
				continue
			}
			if cleaned {
				res.NotesCleaned++
			}
		}
		e.progress(i+1, len(events))
	}

	if err := writeErrorLog(e.opts.ErrorLog, e.opts.Now(), "cleanup", res.Errors); err != nil {
		log.Warn().Err(err).Msg("could not write error log")
	}
	if err := e.vault.SaveCache(); err != nil {
		log.Warn().Err(err).Msg("could not save metadata cache")
	}
	log.Info().Int("deleted", res.Deleted).Int("notes", res.NotesCleaned).Int("errors", len(res.Errors)).Msg("cleanup finished")
	return res, nil
}

func (e *Engine) unlink(n *vault.Note, key, eventID string) (bool, error) {
	content, err := e.vault.Read(n)
	if err != nil {
		return false, err
	}
	stripped, ok := vault.StripAttributeLine(content, key, eventID)
	if !ok {
		return false, nil
	}
	if err := e.vault.Write(n, stripped); err != nil {
		return false, fmt.Errorf("unable to unlink event %s: %w", eventID, err)
	}
	return true, nil
}
