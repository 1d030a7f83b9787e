// Package google talks to the Google Calendar API.
package google

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/notecal/pkg/auth"
)

// NewClient creates a Gateway authorized by session.
func NewClient(ctx context.Context, session *auth.Session, calendarID string) (*Gateway, error) {
	if !session.Ready() {
		return nil, auth.ErrNoCredential
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(session.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %v", err)
	}
	return NewGateway(srv, calendarID, session), nil
}
