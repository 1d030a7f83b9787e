package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// MaxListResults is the provider's single-page maximum. ListAll does not
// paginate, so one listing never sees more than this many events.
const MaxListResults = 2500

// ErrNotFound is returned when the provider reports the event as missing.
var ErrNotFound = errors.New("event not found")

// Refresher keeps the credential fresh before a remote call.
type Refresher interface {
	EnsureFresh(ctx context.Context) error
}

// Gateway performs single-event operations against one calendar.
type Gateway struct {
	srv        *calendar.Service
	calendarID string
	fresh      Refresher
}

// NewGateway creates a Gateway. fresh may be nil.
func NewGateway(srv *calendar.Service, calendarID string, fresh Refresher) *Gateway {
	return &Gateway{srv: srv, calendarID: calendarID, fresh: fresh}
}

// refresh never fails a call: a stale credential makes the call itself fail.
func (g *Gateway) refresh(ctx context.Context) {
	if g.fresh == nil {
		return
	}
	if err := g.fresh.EnsureFresh(ctx); err != nil {
		log.Warn().Err(err).Msg("could not refresh calendar credential, continuing with current token")
	}
}

// Get fetches an event. It returns ErrNotFound when the event is gone.
func (g *Gateway) Get(ctx context.Context, eventID string) (*calendar.Event, error) {
	g.refresh(ctx)
	event, err := g.srv.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, wrap("get", eventID, err)
	}
	return event, nil
}

// Insert creates an event and returns its provider-assigned id.
func (g *Gateway) Insert(ctx context.Context, event *calendar.Event) (string, error) {
	g.refresh(ctx)
	created, err := g.srv.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", wrap("insert", "", err)
	}
	return created.Id, nil
}

// Update replaces the event addressed by eventID with event.
func (g *Gateway) Update(ctx context.Context, eventID string, event *calendar.Event) error {
	g.refresh(ctx)
	if _, err := g.srv.Events.Update(g.calendarID, eventID, event).Context(ctx).Do(); err != nil {
		return wrap("update", eventID, err)
	}
	return nil
}

// Delete removes an event.
func (g *Gateway) Delete(ctx context.Context, eventID string) error {
	g.refresh(ctx)
	if err := g.srv.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		return wrap("delete", eventID, err)
	}
	return nil
}

// ListAll returns at most MaxListResults events of the calendar.
func (g *Gateway) ListAll(ctx context.Context) ([]*calendar.Event, error) {
	g.refresh(ctx)
	events, err := g.srv.Events.List(g.calendarID).MaxResults(MaxListResults).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}
	if events.NextPageToken != "" {
		log.Warn().Int("limit", MaxListResults).Msg("calendar has more events than one listing returns, the rest are not visited")
	}
	return events.Items, nil
}

// IsGone reports whether err means the event no longer exists.
func IsGone(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func wrap(op, eventID string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return fmt.Errorf("%s event %s: %w", op, eventID, ErrNotFound)
	}
	if eventID == "" {
		return fmt.Errorf("%s event: %w", op, err)
	}
	return fmt.Errorf("%s event %s: %w", op, eventID, err)
}
