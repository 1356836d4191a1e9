package user

import (
	"reflect"
	"testing"
)

func TestRolesCan(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		cap   Capability
		want  bool
	}{
		{name: "no role", cap: CapViewTimetable},
		{name: "student views", roles: []string{RoleStudent}, cap: CapViewTimetable, want: true},
		{name: "parent cannot plan", roles: []string{RoleParent}, cap: CapPlanTimetable},
		{name: "catechist plans", roles: []string{RoleCatechist}, cap: CapPlanTimetable, want: true},
		{name: "catechist submits", roles: []string{RoleCatechist}, cap: CapSubmitTimetable, want: true},
		{name: "catechist cannot manage users", roles: []string{RoleCatechist}, cap: CapManageUsers},
		{name: "principal inherits admin", roles: []string{RoleAdminPrincipal}, cap: CapManageUsers, want: true},
		{name: "any role grants", roles: []string{RoleParent, RoleCatechist}, cap: CapSubmitTimetable, want: true},
		{name: "unknown role", roles: []string{"pope:"}, cap: CapViewTimetable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RolesCan(tt.roles, tt.cap); got != tt.want {
				t.Errorf("RolesCan() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCapabilities(t *testing.T) {
	got := Capabilities([]string{RoleParent, RoleCatechist, RoleStudent})
	want := []Capability{CapViewTimetable, CapPlanTimetable, CapSubmitTimetable}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Capabilities() = %v, want %v", got, want)
	}
	if got := Capabilities(nil); len(got) != 0 {
		t.Errorf("Capabilities(nil) = %v, want none", got)
	}
}

func TestUser_Can(t *testing.T) {
	usr := User{Roles: []string{RoleCatechist}, IsActive: true}
	if !usr.Can(CapPlanTimetable) {
		t.Error("active catechist should plan timetables")
	}
	usr.IsActive = false
	if usr.Can(CapViewTimetable) {
		t.Error("inactive user should not view timetables")
	}
}

func TestSession(t *testing.T) {
	usr := User{ID: "u1", Username: "cat", Email: "cat@test.cd", Roles: []string{RoleCatechist}, IsActive: true}

	var anon Session
	if anon.IsAuthenticated() || anon.Can(CapViewTimetable) {
		t.Error("zero Session should be anonymous")
	}

	sess := NewSession(usr, "tok")
	if !sess.IsAuthenticated() {
		t.Error("Session with a token should be authenticated")
	}
	if !sess.Can(CapSubmitTimetable) || sess.Can(CapManageUsers) {
		t.Errorf("Session capabilities do not follow roles %v", sess.Roles)
	}
	if got := sess.User(); got.ID != usr.ID || got.Username != usr.Username || !got.IsActive {
		t.Errorf("Session.User() = %+v, want %+v", got, usr)
	}
}
