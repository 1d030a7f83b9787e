package mapping

import (
	"fmt"
	"strings"
	"time"
)

// Fields is a task's attribute block projected through a Config. Every known
// role has a slot; attributes no role claims are kept in Extra.
type Fields struct {
	Start       string
	End         string
	Name        string
	Description string
	Location    string
	Status      string
	Attendees   any
	ColorID     string
	Reminders   any
	Recurrence  string
	Visibility  string
	EventID     string

	Extra map[string]any
}

// Resolve projects data through cfg.
func Resolve(cfg Config, data map[string]any) Fields {
	f := Fields{Extra: map[string]any{}}
	claimed := map[string]bool{}

	lookup := func(r Role) (any, bool) {
		key, ok := cfg.Key(r)
		if !ok {
			return nil, false
		}
		claimed[key] = true
		v, ok := data[key]
		if !ok || v == nil {
			return nil, false
		}
		return v, true
	}
	str := func(r Role) string {
		v, ok := lookup(r)
		if !ok {
			return ""
		}
		return strings.TrimSpace(Stringify(v))
	}

	f.Start = str(RoleStart)
	f.End = str(RoleEnd)
	f.Name = str(RoleName)
	f.Description = str(RoleDescription)
	f.Location = str(RoleLocation)
	f.Status = str(RoleStatus)
	f.ColorID = str(RoleColorID)
	f.Recurrence = str(RoleRecurrence)
	f.Visibility = str(RoleVisibility)
	if v, ok := lookup(RoleAttendees); ok && !isBlank(v) {
		f.Attendees = v
	}
	if v, ok := lookup(RoleReminders); ok && !isBlank(v) {
		f.Reminders = v
	}

	idKey := cfg.EventIDKey()
	claimed[idKey] = true
	if v, ok := data[idKey]; ok && v != nil {
		f.EventID = strings.TrimSpace(Stringify(v))
	}

	for k, v := range data {
		if !claimed[k] {
			f.Extra[k] = v
		}
	}
	return f
}

// Stringify renders an attribute value in its native string form.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(dateLayout)
		}
		return t.Format(time.RFC3339)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, Stringify(e))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
