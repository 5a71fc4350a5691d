package auth

// Package auth contains domain-level types for identities and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role is one of the closed set of application roles.
// Keep string form for easy persistence and cookies.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleOfficer Role = "officer"
	RoleStudent Role = "student"
)

// Roles lists the closed role set in display order.
func Roles() []Role { return []Role{RoleTeacher, RoleOfficer, RoleStudent} }

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleTeacher, RoleOfficer, RoleStudent:
		return true
	default:
		return false
	}
}

// ParseRole normalizes a raw role string. Unknown values are returned as-is
// so callers can still tell "missing" from "unrecognized"; check Valid.
func ParseRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// Identity is the authenticated principal as reported by the course backend.
// JSON tags match the backend's login payload so it decodes directly.
type Identity struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	RealName    string `json:"realName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Email       string `json:"email,omitempty"`
	Role        Role   `json:"role"`
	StudentID   string `json:"studentId,omitempty"`
	TeacherID   string `json:"teacherId,omitempty"`
	College     string `json:"college,omitempty"`
	Major       string `json:"major,omitempty"`
	ClassName   string `json:"className,omitempty"`
}

// DisplayName prefers the real name and falls back to the username.
func (i Identity) DisplayName() string {
	if i.RealName != "" {
		return i.RealName
	}
	return i.Username
}

// State is the validity state of a stored session.
type State int

const (
	StateAbsent State = iota
	StateValid
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	default:
		return "absent"
	}
}

// Session pairs a bearer token with the identity it was issued for.
// The token is opaque; ExpiresAt is the local retention deadline, not a token claim.
type Session struct {
	Token     string    `json:"token"`
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasToken reports whether a non-empty token is present.
func (s Session) HasToken() bool { return strings.TrimSpace(s.Token) != "" }

// StateAt returns the validity of the session at now.
// A zero ExpiresAt never expires locally; the server is the authority.
func (s Session) StateAt(now time.Time) State {
	if !s.HasToken() {
		return StateAbsent
	}
	if !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt) {
		return StateExpired
	}
	return StateValid
}
