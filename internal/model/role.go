package model

import (
	"fmt"
	"strconv"
)

// Role decides which map layer a user appears on.
type Role int

const (
	RoleUser Role = iota
	RoleTrainer
	RoleDeveloper
)

// RoleIcon describes the marker shown on the map legend for a role.
type RoleIcon struct {
	Role      Role
	Label     string
	IconURL   string
	ShadowURL string
}

var roleIcons = []RoleIcon{
	{Role: RoleUser, Label: "User", IconURL: "/assets/img/user-icon.svg", ShadowURL: "/assets/img/shadow-icon.svg"},
	{Role: RoleTrainer, Label: "Trainer", IconURL: "/assets/img/trainer-icon.svg", ShadowURL: "/assets/img/shadow-icon.svg"},
	{Role: RoleDeveloper, Label: "Developer", IconURL: "/assets/img/developer-icon.svg", ShadowURL: "/assets/img/shadow-icon.svg"},
}

// Roles returns every role in display order.
func Roles() []RoleIcon {
	out := make([]RoleIcon, len(roleIcons))
	copy(out, roleIcons)
	return out
}

func (r Role) Valid() bool {
	return r >= RoleUser && r <= RoleDeveloper
}

func (r Role) Label() string {
	if !r.Valid() {
		return "Unknown"
	}
	return roleIcons[r].Label
}

// ParseRole parses the numeric form used in query strings and forms.
func ParseRole(s string) (Role, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid role %q: %w", s, err)
	}
	r := Role(i)
	if !r.Valid() {
		return 0, fmt.Errorf("unknown role %d", i)
	}
	return r, nil
}
