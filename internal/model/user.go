package model

import (
	"time"
)

type User struct {
	ID              string    `db:"id"`
	Email           string    `db:"email"`
	PasswordHash    string    `db:"password_hash"`
	Name            string    `db:"name"`
	Website         string    `db:"website"`
	Role            Role      `db:"role"`
	Latitude        float64   `db:"latitude"`
	Longitude       float64   `db:"longitude"`
	EmailUpdates    bool      `db:"email_updates"`
	IsConfirmed     bool      `db:"is_confirmed"`
	IsActive        bool      `db:"is_active"`
	ConfirmationKey string    `db:"confirmation_key"`
	SessionVersion  int       `db:"session_version"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// CanSignIn reports whether account state allows a session.
// Credentials are checked separately.
func (u *User) CanSignIn() bool {
	return u.IsActive && u.IsConfirmed
}

// Public strips everything that must not leave the server.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Role:      u.Role,
		RoleName:  u.Role.Label(),
		Website:   u.Website,
		Latitude:  u.Latitude,
		Longitude: u.Longitude,
	}
}

// PublicUser is the map listing record.
type PublicUser struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Role      Role    `json:"role"`
	RoleName  string  `json:"role_name"`
	Website   string  `json:"website,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
