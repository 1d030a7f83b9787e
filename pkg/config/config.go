package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/harrisonrobin/notecal/pkg/mapping"
)

const (
	xdgAppName   = "notecal"
	settingsFile = "settings.json"
	envPrefix    = "NOTECAL"
)

// Settings is the persisted engine state. Every field is optional on disk and
// merged over Defaults.
type Settings struct {
	VaultPath        string         `json:"vaultPath" mapstructure:"vaultPath"`
	SyncTag          string         `json:"syncTag" mapstructure:"syncTag"`
	CalendarID       string         `json:"calendarId" mapstructure:"calendarId"`
	FieldMappings    mapping.Config `json:"fieldMappings" mapstructure:"fieldMappings"`
	DeleteStatus     string         `json:"deleteStatus" mapstructure:"deleteStatus"`
	TaskFolderPath   string         `json:"taskFolderPath" mapstructure:"taskFolderPath"`
	SearchFolderName string         `json:"searchFolderName" mapstructure:"searchFolderName"`
	DoneFolderName   string         `json:"doneFolderName" mapstructure:"doneFolderName"`
	LastSyncDate     string         `json:"lastSyncDate,omitempty" mapstructure:"lastSyncDate"`
	LogPath          string         `json:"logPath,omitempty" mapstructure:"logPath"`
	Token            string         `json:"token,omitempty" mapstructure:"token"`
}

// Defaults returns the documented default settings.
func Defaults() Settings {
	return Settings{
		SyncTag:          "task",
		CalendarID:       "primary",
		FieldMappings:    mapping.DefaultConfig(),
		DeleteStatus:     "done",
		TaskFolderPath:   "Tasks",
		SearchFolderName: "OPEN",
		DoneFolderName:   "DONE",
	}
}

// Checkpoint returns the last sync time, if one was recorded.
func (s Settings) Checkpoint() (time.Time, bool) {
	if strings.TrimSpace(s.LastSyncDate) == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s.LastSyncDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetCheckpoint records t as the last sync time.
func (s *Settings) SetCheckpoint(t time.Time) {
	s.LastSyncDate = t.UTC().Format(time.RFC3339Nano)
}

func (s Settings) clone() Settings {
	out := s
	out.FieldMappings = mapping.Config{}
	for k, v := range s.FieldMappings {
		out.FieldMappings[k] = v
	}
	return out
}

// Store owns the settings file. All writes go through Update.
type Store struct {
	path     string
	mu       sync.Mutex
	settings Settings
}

// GetConfigDir returns ~/.config/notecal.
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

// DefaultPath returns the default settings file location.
func DefaultPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, settingsFile), nil
}

// Load reads the settings at path, or the default location when path is
// empty. A missing file yields the defaults. Environment variables prefixed
// NOTECAL_ override file values.
func Load(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	def := Defaults()
	v.SetDefault("vaultPath", def.VaultPath)
	v.SetDefault("syncTag", def.SyncTag)
	v.SetDefault("calendarId", def.CalendarID)
	v.SetDefault("deleteStatus", def.DeleteStatus)
	v.SetDefault("taskFolderPath", def.TaskFolderPath)
	v.SetDefault("searchFolderName", def.SearchFolderName)
	v.SetDefault("doneFolderName", def.DoneFolderName)
	v.SetDefault("lastSyncDate", "")
	v.SetDefault("logPath", "")
	v.SetDefault("token", "")
	for role, key := range def.FieldMappings {
		v.SetDefault("fieldMappings."+string(role), key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	// viper lowercases map keys; restore the canonical role names.
	s.FieldMappings = s.FieldMappings.Normalize()

	return &Store{path: path, settings: s}, nil
}

// NewStore returns a Store holding s that persists to path.
func NewStore(path string, s Settings) *Store {
	s.FieldMappings = s.FieldMappings.Normalize()
	return &Store{path: path, settings: s}
}

// Path is the settings file location.
func (st *Store) Path() string { return st.path }

// Dir is the directory holding the settings file.
func (st *Store) Dir() string { return filepath.Dir(st.path) }

// Get returns a copy of the current settings.
func (st *Store) Get() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.settings.clone()
}

// Update applies fn to the settings and saves them.
func (st *Store) Update(fn func(*Settings)) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.settings.clone()
	fn(&next)
	if err := save(st.path, next); err != nil {
		return err
	}
	st.settings = next
	return nil
}

func save(path string, s Settings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open settings file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(s)
}
