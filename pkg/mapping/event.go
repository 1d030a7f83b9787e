// Package mapping converts a note's attribute block into a calendar event.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
)

const dateLayout = "2006-01-02"

var timedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// eventStatuses are the values the provider accepts for Event.Status.
var eventStatuses = map[string]bool{"confirmed": true, "tentative": true, "cancelled": true}

// MappingError reports a task attribute that cannot be carried into an event.
type MappingError struct {
	Role Role
	Err  error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Role, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// Source is the note a task was read from.
type Source struct {
	// Name is the note's base filename without extension.
	Name string
	// Body is the note content after the attribute block.
	Body string
}

// MapToEvent builds the event body for a task. Missing start or end default
// to now; unparsable ones are rejected.
func MapToEvent(cfg Config, data map[string]any, src Source, now time.Time) (*calendar.Event, error) {
	f := Resolve(cfg, data)

	rawStart, rawEnd := f.Start, f.End
	start, err := parseInstant(rawStart, now)
	if err != nil {
		return nil, &MappingError{Role: RoleStart, Err: err}
	}
	end, err := parseInstant(rawEnd, now)
	if err != nil {
		return nil, &MappingError{Role: RoleEnd, Err: err}
	}

	event := &calendar.Event{
		Summary: f.Name,
	}
	if event.Summary == "" {
		event.Summary = src.Name
	}

	if len(rawStart) == len(dateLayout) && len(rawEnd) == len(dateLayout) {
		event.Start = &calendar.EventDateTime{Date: start.Format(dateLayout)}
		event.End = &calendar.EventDateTime{Date: end.Format(dateLayout)}
	} else {
		event.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)}
		event.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)}
	}

	if f.Location != "" {
		event.Location = f.Location
	}
	if f.ColorID != "" {
		event.ColorId = f.ColorID
	}
	if f.Visibility != "" {
		event.Visibility = f.Visibility
	}
	if eventStatuses[f.Status] {
		event.Status = f.Status
	}
	if f.Recurrence != "" {
		event.Recurrence = splitRecurrence(f.Recurrence)
	}
	if f.Attendees != nil {
		var attendees []*calendar.EventAttendee
		if err := decodeStructured(f.Attendees, &attendees); err != nil {
			return nil, &MappingError{Role: RoleAttendees, Err: err}
		}
		event.Attendees = attendees
	}
	if f.Reminders != nil {
		var reminders calendar.EventReminders
		if err := decodeStructured(f.Reminders, &reminders); err != nil {
			return nil, &MappingError{Role: RoleReminders, Err: err}
		}
		// useDefault=false must be sent explicitly or the provider keeps its defaults.
		reminders.ForceSendFields = []string{"UseDefault"}
		event.Reminders = &reminders
	}

	// The note body always wins over a mapped description.
	event.Description = strings.TrimSpace(src.Body)

	if f.EventID != "" {
		event.Id = f.EventID
	}
	return event, nil
}

func parseInstant(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now, nil
	}
	loc := now.Location()
	if len(raw) == len(dateLayout) {
		return time.ParseInLocation(dateLayout, raw, loc)
	}
	for _, layout := range timedLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a valid date or timestamp", raw)
}

func splitRecurrence(s string) []string {
	var rules []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			rules = append(rules, part)
		}
	}
	return rules
}

// decodeStructured accepts either serialized JSON text or an already
// structured YAML value.
func decodeStructured(v any, out any) error {
	var raw []byte
	if s, ok := v.(string); ok {
		raw = []byte(strings.TrimSpace(s))
	} else {
		b, err := json.Marshal(normalizeYAML(v))
		if err != nil {
			return err
		}
		raw = b
	}
	if len(raw) == 0 {
		return errors.New("empty value")
	}
	return json.Unmarshal(raw, out)
}

// normalizeYAML turns map[any]any nodes into map[string]any so they can be
// marshalled as JSON.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = normalizeYAML(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = normalizeYAML(e)
		}
		return s
	default:
		return v
	}
}
