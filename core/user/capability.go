package user

import "strings"

type Capability string

const (
	CapViewTimetable   Capability = "timetable:view"
	CapPlanTimetable   Capability = "timetable:plan"
	CapSubmitTimetable Capability = "timetable:submit"
	CapManageUsers     Capability = "users:manage"
)

// capabilities maps each role family to what its members may do.
var capabilities = map[string][]Capability{
	RoleAdmin:     {CapViewTimetable, CapPlanTimetable, CapSubmitTimetable, CapManageUsers},
	RoleCatechist: {CapViewTimetable, CapPlanTimetable, CapSubmitTimetable},
	RoleParent:    {CapViewTimetable},
	RoleStudent:   {CapViewTimetable},
}

// roleFamily returns the prefix of role up to and including ":", e.g. "admin:" for "admin:principal".
func roleFamily(role string) string {
	if i := strings.Index(role, ":"); i >= 0 {
		return role[:i+1]
	}
	return role
}

// RolesCan reports whether any of roles grants capability.
func RolesCan(roles []string, capability Capability) bool {
	for _, role := range roles {
		for _, c := range capabilities[roleFamily(role)] {
			if c == capability {
				return true
			}
		}
	}
	return false
}

// Capabilities lists what roles grant, without duplicates.
func Capabilities(roles []string) []Capability {
	seen := make(map[Capability]bool)
	caps := make([]Capability, 0, len(capabilities[RoleAdmin]))
	for _, role := range roles {
		for _, c := range capabilities[roleFamily(role)] {
			if !seen[c] {
				seen[c] = true
				caps = append(caps, c)
			}
		}
	}
	return caps
}
