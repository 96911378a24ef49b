package entity

import "time"

// Role decides messaging permissions. It is resolved once per request, from
// the bearer token or the directory, and passed downstream.
type Role string

const (
	RoleStudent Role = "student"
	RoleAlumni  Role = "alumni"
	RoleAdmin   Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleAlumni, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts the canonical lowercase names plus the plural "alumni"
// spelling variants used by the portal's profile collections.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "student", "students":
		return RoleStudent, true
	case "alumni", "alumnus", "alumna":
		return RoleAlumni, true
	case "admin", "admins", "administrator":
		return RoleAdmin, true
	}
	return "", false
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// User is the slice of the portal's user profile this service reads. Profiles
// are owned elsewhere; only the role matters here.
type User struct {
	ID        string    `json:"id" firestore:"id" bson:"_id"`
	Role      Role      `json:"role" firestore:"role" bson:"role"`
	Username  string    `json:"username,omitempty" firestore:"username,omitempty" bson:"username,omitempty"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt" bson:"createdAt"`
}
