// Package domain contains the core types shared by the action pipeline,
// the session layer and the stores.
package domain

import (
	"strings"
	"time"
)

// Role is the access role of a user account.
type Role string

const (
	// RoleAdmin grants access to the administrative actions.
	RoleAdmin Role = "Admin"
	// RoleUser is the role of a regular annotating user.
	RoleUser Role = "user"
)

// ParseRole maps a role name to a Role, ignoring case.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, true
	case "user":
		return RoleUser, true
	default:
		return "", false
	}
}

// Plan is the subscription plan of a user account.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

var planRank = map[Plan]int{
	PlanFree:    1,
	PlanPremium: 2,
}

// ParsePlan maps a plan name to a Plan, ignoring case.
func ParsePlan(s string) (Plan, bool) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := planRank[p]; !ok {
		return "", false
	}
	return p, true
}

// Satisfies reports whether p grants at least the entitlements of required.
// Unknown plans satisfy nothing.
func (p Plan) Satisfies(required Plan) bool {
	have, ok := planRank[p]
	if !ok {
		return false
	}
	return have >= planRank[required]
}

// Credential is the opaque request-scoped session credential (a signed
// session token). The empty Credential means no credential was supplied.
type Credential string

// Identity is the authenticated caller, resolved once per invocation.
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
	Plan   Plan   `json:"plan"`
	Banned bool   `json:"banned"`
}

// User is a stored account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Plan         Plan      `json:"plan"`
	Banned       bool      `json:"banned"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity returns the session identity of the user.
func (u *User) Identity() Identity {
	return Identity{
		UserID: u.ID,
		Role:   u.Role,
		Plan:   u.Plan,
		Banned: u.Banned,
	}
}

// InvocationRecord is the audit entry written for one action invocation.
type InvocationRecord struct {
	ID         string        `json:"id"`
	ActionName string        `json:"actionName"`
	Outcome    Outcome       `json:"outcome"`
	ErrorKind  ErrorKind     `json:"errorKind,omitempty"`
	RedirectTo string        `json:"redirectTo,omitempty"`
	Duration   time.Duration `json:"durationNs"`
	CreatedAt  time.Time     `json:"createdAt"`
}
