// Package vault is a filesystem-backed note store: a directory of markdown
// notes with YAML attribute blocks.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNotFolder = errors.New("not a folder")
	ErrExists    = errors.New("destination already exists")
)

// Note is a handle to one markdown file.
type Note struct {
	// Path is vault-relative and slash separated.
	Path     string
	Name     string
	Created  time.Time
	Modified time.Time
	Size     int64
}

// Dir is the vault-relative folder holding the note.
func (n *Note) Dir() string {
	d := path.Dir(n.Path)
	if d == "." {
		return ""
	}
	return d
}

// Folder is a handle to a directory in the vault.
type Folder struct {
	Path string
	Name string
	v    *Vault
}

// Children lists the immediate subfolders and notes of f.
func (f *Folder) Children() ([]*Folder, []*Note, error) {
	entries, err := os.ReadDir(f.v.abs(f.Path))
	if err != nil {
		return nil, nil, err
	}
	var folders []*Folder
	var notes []*Note
	for _, entry := range entries {
		name := entry.Name()
		child := joinRel(f.Path, name)
		if entry.IsDir() {
			if strings.HasPrefix(name, ".") {
				continue
			}
			folders = append(folders, &Folder{Path: child, Name: name, v: f.v})
			continue
		}
		if !isMarkdown(name) {
			continue
		}
		n, err := f.v.Note(child)
		if err != nil {
			return nil, nil, err
		}
		notes = append(notes, n)
	}
	return folders, notes, nil
}

// Vault is a note store rooted at a directory.
type Vault struct {
	root  string
	cache *MetadataCache
}

// Open returns the vault rooted at root. A nil cache gets an in-memory one.
func Open(root string, cache *MetadataCache) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open vault %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open vault %s: %w", abs, ErrNotFolder)
	}
	if cache == nil {
		cache, _ = NewMetadataCache("")
	}
	return &Vault{root: abs, cache: cache}, nil
}

// Root is the absolute vault directory.
func (v *Vault) Root() string { return v.root }

// Abs converts a vault-relative path to an absolute one.
func (v *Vault) Abs(rel string) (string, error) {
	clean, err := cleanRelPath(rel)
	if err != nil {
		return "", err
	}
	return v.abs(clean), nil
}

// Rel converts an absolute path inside the vault to a vault-relative one.
func (v *Vault) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil {
		return "", err
	}
	return cleanRelPath(rel)
}

func (v *Vault) abs(clean string) string {
	return filepath.Join(v.root, filepath.FromSlash(clean))
}

// Notes enumerates every markdown note in the vault in walk order.
func (v *Vault) Notes() ([]*Note, error) {
	var notes []*Note
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != v.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isMarkdown(d.Name()) {
			return nil
		}
		rel, err := v.Rel(p)
		if err != nil {
			return err
		}
		n, err := v.Note(rel)
		if err != nil {
			return err
		}
		notes = append(notes, n)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list notes: %w", err)
	}
	return notes, nil
}

// Note stats the note at a vault-relative path.
func (v *Vault) Note(rel string) (*Note, error) {
	clean, err := cleanRelPath(rel)
	if err != nil {
		return nil, err
	}
	abs := v.abs(clean)
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("note %s: %w", clean, ErrNotFound)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("note %s is a folder", clean)
	}
	return &Note{
		Path:     clean,
		Name:     strings.TrimSuffix(path.Base(clean), path.Ext(clean)),
		Created:  birthTime(abs, info),
		Modified: info.ModTime(),
		Size:     info.Size(),
	}, nil
}

// Folder resolves a vault-relative path to a folder handle.
func (v *Vault) Folder(rel string) (*Folder, error) {
	clean, err := cleanRelPath(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(v.abs(clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("folder %s: %w", clean, ErrNotFound)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("folder %s: %w", clean, ErrNotFolder)
	}
	return &Folder{Path: clean, Name: path.Base(clean), v: v}, nil
}

// FrontMatter returns a copy of the note's attribute block, served from the
// metadata cache when the note is unchanged since it was last parsed.
func (v *Vault) FrontMatter(n *Note) (map[string]any, error) {
	if fm, ok := v.cache.Get(n.Path, n.Modified, n.Size); ok {
		return copyMap(fm), nil
	}
	content, err := v.Read(n)
	if err != nil {
		return nil, err
	}
	fm, _, err := ParseFrontMatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.Path, err)
	}
	v.cache.Set(n.Path, n.Modified, n.Size, fm)
	return copyMap(fm), nil
}

// Read returns the raw content of a note.
func (v *Vault) Read(n *Note) (string, error) {
	b, err := os.ReadFile(v.abs(n.Path))
	if err != nil {
		return "", fmt.Errorf("unable to read note %s: %w", n.Path, err)
	}
	return string(b), nil
}

// Write replaces the raw content of a note and refreshes its handle.
func (v *Vault) Write(n *Note, content string) error {
	abs := v.abs(n.Path)
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return fmt.Errorf("unable to write note %s: %w", n.Path, err)
	}
	v.cache.Remove(n.Path)
	if info, err := os.Stat(abs); err == nil {
		n.Modified = info.ModTime()
		n.Size = info.Size()
	}
	return nil
}

// WriteFrontMatter rewrites the note's attribute block with data.
func (v *Vault) WriteFrontMatter(n *Note, data map[string]any) error {
	content, err := v.Read(n)
	if err != nil {
		return err
	}
	return v.Write(n, ReplaceFrontMatter(content, data))
}

// Body returns the note content after the attribute block.
func (v *Vault) Body(n *Note) (string, error) {
	content, err := v.Read(n)
	if err != nil {
		return "", err
	}
	_, body, _ := SplitFrontMatter(content)
	return body, nil
}

// Move relocates a note into folder, creating the folder first if absent.
func (v *Vault) Move(n *Note, folder string) (*Note, error) {
	dest, err := cleanRelPath(folder)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(v.abs(dest), 0o755); err != nil {
		return nil, fmt.Errorf("unable to create folder %s: %w", dest, err)
	}
	target := joinRel(dest, path.Base(n.Path))
	if _, err := os.Stat(v.abs(target)); err == nil {
		return nil, fmt.Errorf("move %s: %s: %w", n.Path, target, ErrExists)
	}
	if err := os.Rename(v.abs(n.Path), v.abs(target)); err != nil {
		return nil, fmt.Errorf("unable to move note %s to %s: %w", n.Path, dest, err)
	}
	v.cache.Remove(n.Path)
	return v.Note(target)
}

// SaveCache persists the metadata cache.
func (v *Vault) SaveCache() error {
	return v.cache.Save()
}

func cleanRelPath(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || trimmed == "/" {
		return "", nil
	}
	if filepath.IsAbs(trimmed) {
		return "", errors.New("absolute paths are not allowed")
	}
	clean := path.Clean(filepath.ToSlash(trimmed))
	if clean == "." {
		return "", nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.New("path escapes vault directory")
	}
	return clean, nil
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func isMarkdown(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".md")
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
