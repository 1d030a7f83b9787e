package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/notecal/pkg/mapping"
)

const fieldMappingsPrefix = "fieldMappings."

// Keys lists the settings that Set accepts, besides fieldMappings.<role>.
var Keys = []string{
	"vaultPath", "syncTag", "calendarId", "deleteStatus",
	"taskFolderPath", "searchFolderName", "doneFolderName", "lastSyncDate", "logPath",
}

// Set assigns one setting by its JSON name. An empty value for
// fieldMappings.<role> unmaps the role; an empty lastSyncDate clears the
// checkpoint.
func (s *Settings) Set(key, value string) error {
	if strings.HasPrefix(key, fieldMappingsPrefix) {
		role, ok := mapping.ParseRole(strings.TrimPrefix(key, fieldMappingsPrefix))
		if !ok {
			return fmt.Errorf("unknown field mapping role %q", strings.TrimPrefix(key, fieldMappingsPrefix))
		}
		if s.FieldMappings == nil {
			s.FieldMappings = mapping.Config{}
		}
		if value == "" {
			delete(s.FieldMappings, role)
		} else {
			s.FieldMappings[role] = value
		}
		return nil
	}

	switch key {
	case "vaultPath":
		s.VaultPath = value
	case "syncTag":
		s.SyncTag = value
	case "calendarId":
		s.CalendarID = value
	case "deleteStatus":
		s.DeleteStatus = value
	case "taskFolderPath":
		s.TaskFolderPath = value
	case "searchFolderName":
		s.SearchFolderName = value
	case "doneFolderName":
		s.DoneFolderName = value
	case "lastSyncDate":
		if value == "" {
			s.LastSyncDate = ""
			return nil
		}
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("lastSyncDate must be RFC 3339: %w", err)
		}
		s.SetCheckpoint(t)
	case "logPath":
		s.LogPath = value
	case "token":
		return fmt.Errorf("token is managed by `notecal auth`")
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (s Settings) Redacted() Settings {
	out := s.clone()
	if out.Token != "" {
		out.Token = "<encrypted>"
	}
	return out
}
