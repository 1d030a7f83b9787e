package mapping

import (
	"strings"
)

// Role is a semantic attribute of a task that can be carried into an event.
type Role string

const (
	RoleStart       Role = "start"
	RoleEnd         Role = "end"
	RoleName        Role = "name"
	RoleDescription Role = "description"
	RoleLocation    Role = "location"
	RoleStatus      Role = "status"
	RoleAttendees   Role = "attendees"
	RoleColorID     Role = "colorId"
	RoleReminders   Role = "reminders"
	RoleRecurrence  Role = "recurrence"
	RoleVisibility  Role = "visibility"
	RoleEventID     Role = "googleEventId"
)

// Roles lists every known role.
var Roles = []Role{
	RoleStart, RoleEnd, RoleName, RoleDescription, RoleLocation, RoleStatus,
	RoleAttendees, RoleColorID, RoleReminders, RoleRecurrence, RoleVisibility, RoleEventID,
}

// ParseRole resolves a role name case-insensitively.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, true
		}
	}
	return "", false
}

// Config maps roles to the attribute-block key holding their value.
type Config map[Role]string

// DefaultConfig returns the mapping used when none is configured.
func DefaultConfig() Config {
	return Config{
		RoleStart:   "start",
		RoleEnd:     "end",
		RoleName:    "title",
		RoleStatus:  "status",
		RoleEventID: "googleEventId",
	}
}

// Key returns the attribute key for r and whether it is mapped.
func (c Config) Key(r Role) (string, bool) {
	key := strings.TrimSpace(c[r])
	return key, key != ""
}

// EventIDKey is the key holding the back-reference. It is never unmapped.
func (c Config) EventIDKey() string {
	if key, ok := c.Key(RoleEventID); ok {
		return key
	}
	return string(RoleEventID)
}

// Normalize canonicalizes role names, drops unknown roles and fills the
// mandatory roles from the defaults.
func (c Config) Normalize() Config {
	out := Config{}
	for name, key := range c {
		if r, ok := ParseRole(string(name)); ok {
			out[r] = strings.TrimSpace(key)
		}
	}
	for r, key := range DefaultConfig() {
		if r == RoleStatus {
			continue
		}
		if _, ok := out.Key(r); !ok {
			out[r] = key
		}
	}
	return out
}
