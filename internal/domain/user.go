package domain

import "time"

// Role represents what a user is allowed to do.
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleHost, RoleStaff:
		return true
	}
	return false
}

// User represents a guest, host or staff member.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Role      Role
	CreatedAt time.Time
}

// FullName returns the display name used in notifications.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return u.Email
	case u.LastName == "":
		return u.FirstName
	case u.FirstName == "":
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

// Caller is the authenticated identity behind a request. It is resolved by the
// transport layer and only used for authorization checks.
type Caller struct {
	UserID string
	Role   Role
}

// IsStaff reports whether the caller may act on any entity.
func (c Caller) IsStaff() bool {
	return c.Role == RoleStaff
}

// Owns reports whether the caller is the given user or staff.
func (c Caller) Owns(userID string) bool {
	return c.IsStaff() || (c.UserID != "" && c.UserID == userID)
}
