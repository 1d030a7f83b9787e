// Package auth owns the calendar credential: the OAuth client configuration,
// the encrypted token kept in settings, and the authorization flow.
package auth

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// ClientSecretsFile is the Google API client secrets file, read from the
// config directory.
const ClientSecretsFile = "credentials.json"

// Scopes requested for calendar sync.
var Scopes = []string{calendar.CalendarEventsScope}

// GetConfig creates an oauth2.Config from the client secrets file in dir.
// The redirect URL is chosen per authorization attempt.
func GetConfig(dir string) (*oauth2.Config, error) {
	path := filepath.Join(dir, ClientSecretsFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", path, err)
	}
	cfg, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	return cfg, nil
}
