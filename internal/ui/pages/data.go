// Package pages holds one templ component per page. Components read the
// request scoped values (config, user, CSRF token, nonce) from the context.
package pages

import (
	"context"
	"strconv"

	"github.com/templui/usermap/internal/ctxkeys"
	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/validation"
)

// MapConfig is handed to the map script.
type MapConfig struct {
	TilesURL    string     `json:"tilesUrl"`
	Attribution string     `json:"attribution"`
	UsersURL    string     `json:"usersUrl"`
	Roles       []MapRole  `json:"roles"`
	Center      [2]float64 `json:"center"`
	Zoom        int        `json:"zoom"`
}

type MapRole struct {
	Role      int    `json:"role"`
	Label     string `json:"label"`
	IconURL   string `json:"iconUrl"`
	ShadowURL string `json:"shadowUrl"`
}

type IndexData struct {
	Roles       []model.RoleIcon
	Map         MapConfig
	Information string
	DataPrivacy string
	Menu        UserMenu
}

// UserMenu toggles the entries of the map's user menu.
type UserMenu struct {
	AddUser  bool
	Download bool
	Reminder bool
}

type RegisterData struct {
	Form    validation.Registration
	Errors  validation.Result
	Roles   []model.RoleIcon
	Success string
	Warning string
}

type LoginData struct {
	Email string
	Next  string
	// NonFieldError is shown above the form (bad credentials, inactive, unconfirmed)
	NonFieldError string
	Errors        validation.Result
}

type AccountData struct {
	Basic          validation.BasicInformation
	BasicErrors    validation.Result
	PasswordErrors validation.Result
	RoleLabel      string
	Anchor         string
	Success        string
}

type PasswordResetRequestData struct {
	Email  string
	Errors validation.Result
}

type PasswordResetConfirmData struct {
	ValidLink bool
	Errors    validation.Result
}

type ContentData struct {
	Title       string
	Content     string
	LastUpdated string
}

// PickerConfig is handed to the location picker on the registration page.
type PickerConfig struct {
	TilesURL    string `json:"tilesUrl"`
	Attribution string `json:"attribution"`
}

func pickerConfig(ctx context.Context) PickerConfig {
	cfg := ctxkeys.Config(ctx)
	if cfg == nil {
		return PickerConfig{}
	}
	return PickerConfig{TilesURL: cfg.LeafletTilesURL, Attribution: cfg.LeafletTilesAttribution}
}

func formatCoordinate(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
