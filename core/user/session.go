package user

// Session is the identity an operation runs for. The API builds it from the request's token
// and clients carry their own instead of relying on global state.
type Session struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	Token    string   `json:"-"`
}

func NewSession(usr User, token string) Session {
	return Session{
		UserID:   usr.ID,
		Username: usr.Username,
		Email:    usr.Email,
		Roles:    usr.Roles,
		Token:    token,
	}
}

func (s Session) IsAuthenticated() bool {
	return s.Token != ""
}

func (s Session) Can(capability Capability) bool {
	return RolesCan(s.Roles, capability)
}

// User returns the minimal User known from the session.
func (s Session) User() User {
	return User{ID: s.UserID, Username: s.Username, Email: s.Email, Roles: s.Roles, IsActive: true}
}
