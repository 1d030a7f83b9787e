// Package tasks finds notes tagged for calendar sync.
package tasks

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/harrisonrobin/notecal/pkg/folders"
	"github.com/harrisonrobin/notecal/pkg/vault"
)

// Task is a tagged note as seen during one pass. Data is a mutable copy of
// the attribute block; changes are lost unless written back to Note.
type Task struct {
	Name string
	Data map[string]any
	Note *vault.Note
	// Pair is the folder pair the note was scoped to, set by Scope.
	Pair folders.Pair
}

// Store is the part of the note store the extractor reads.
type Store interface {
	Notes() ([]*vault.Note, error)
	FrontMatter(n *vault.Note) (map[string]any, error)
}

// Extractor scans a Store for tagged notes.
type Extractor struct {
	store Store
}

func NewExtractor(store Store) *Extractor {
	return &Extractor{store: store}
}

// Fetch returns every note whose tags list contains tag exactly. Notes whose
// attribute block cannot be parsed are skipped with a warning.
func (e *Extractor) Fetch(tag string) ([]*Task, error) {
	notes, err := e.store.Notes()
	if err != nil {
		return nil, err
	}
	var out []*Task
	for _, n := range notes {
		fm, err := e.store.FrontMatter(n)
		if err != nil {
			log.Warn().Err(err).Str("note", n.Path).Msg("skipping note with unreadable front-matter")
			continue
		}
		if !HasTag(fm, tag) {
			continue
		}
		out = append(out, &Task{Name: n.Name, Data: fm, Note: n})
	}
	return out, nil
}

// HasTag reports whether the attribute block's tags contain tag.
func HasTag(fm map[string]any, tag string) bool {
	switch tags := fm["tags"].(type) {
	case []any:
		for _, t := range tags {
			if fmt.Sprint(t) == tag {
				return true
			}
		}
	case []string:
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
	case string:
		return strings.TrimSpace(tags) == tag
	}
	return false
}

// Scope keeps the tasks that live inside a search folder of pairs and binds
// each to its pair.
func Scope(ts []*Task, pairs folders.Pairs) []*Task {
	var out []*Task
	for _, t := range ts {
		p, ok := pairs.Match(t.Note.Path)
		if !ok {
			continue
		}
		t.Pair = p
		out = append(out, t)
	}
	return out
}
