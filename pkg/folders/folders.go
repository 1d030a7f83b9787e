// Package folders discovers paired open/done folders under a task root.
package folders

import (
	"errors"
	"sort"
	"strings"

	"github.com/harrisonrobin/notecal/pkg/vault"
)

// Pair is a sibling search/done folder couple sharing a parent.
type Pair struct {
	Parent     string
	SearchPath string
	DonePath   string
}

// Tree resolves folder handles.
type Tree interface {
	Folder(path string) (*vault.Folder, error)
}

// Pairs maps a parent folder path to its pair.
type Pairs map[string]Pair

// FindPairs walks the subtree at root depth-first and pairs every folder named
// search with a sibling named done. Incomplete pairs are dropped. A missing
// root, or one that is not a folder, yields no pairs.
func FindPairs(tree Tree, root, search, done string) (Pairs, error) {
	pairs := Pairs{}
	start, err := tree.Folder(root)
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) || errors.Is(err, vault.ErrNotFolder) {
			return pairs, nil
		}
		return nil, err
	}

	partial := map[string]*Pair{}
	record := func(f *vault.Folder) {
		parent := parentOf(f.Path)
		p, ok := partial[parent]
		if !ok {
			p = &Pair{Parent: parent}
			partial[parent] = p
		}
		switch f.Name {
		case search:
			p.SearchPath = f.Path
		case done:
			p.DonePath = f.Path
		}
	}

	var walk func(f *vault.Folder) error
	walk = func(f *vault.Folder) error {
		children, _, err := f.Children()
		if err != nil {
			return err
		}
		for _, child := range children {
			if child.Name == search || child.Name == done {
				record(child)
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(start); err != nil {
		return nil, err
	}

	for parent, p := range partial {
		if p.SearchPath != "" && p.DonePath != "" {
			pairs[parent] = *p
		}
	}
	return pairs, nil
}

// Match returns the pair whose search folder contains notePath. When search
// folders nest, the deepest one wins.
func (ps Pairs) Match(notePath string) (Pair, bool) {
	var best Pair
	found := false
	for _, p := range ps {
		if !within(notePath, p.SearchPath) {
			continue
		}
		if !found || len(p.SearchPath) > len(best.SearchPath) {
			best, found = p, true
		}
	}
	return best, found
}

// Sorted returns the pairs ordered by parent path.
func (ps Pairs) Sorted() []Pair {
	out := make([]Pair, 0, len(ps))
	for _, p := range ps {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Parent < out[j].Parent })
	return out
}

func within(notePath, folder string) bool {
	if folder == "" {
		return true
	}
	return strings.HasPrefix(notePath, folder+"/")
}

func parentOf(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ""
	}
	return p[:i]
}
