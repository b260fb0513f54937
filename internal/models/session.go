package models

// UserType is the role a session was opened with.
type UserType string

const (
	Employee UserType = "Employee"
	Admin    UserType = "Admin"
)

// SessionStatus tells whether the stored user is logged in.
type SessionStatus string

const (
	Connected    SessionStatus = "connected"
	Disconnected SessionStatus = "disconnected"
)

// Session is the persisted "current user" record.
type Session struct {
	Type     UserType      `json:"type"`
	Email    string        `json:"email"`
	Password string        `json:"password,omitempty"`
	Status   SessionStatus `json:"status"`
}
