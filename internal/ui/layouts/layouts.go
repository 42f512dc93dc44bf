// Package layouts holds the page chrome shared by every page.
package layouts

import (
	"context"

	"github.com/a-h/templ"
	"github.com/templui/usermap/internal/ctxkeys"
)

const defaultAppName = "User Map"

// BaseProps configures the base layout. Head and Scripts are optional.
type BaseProps struct {
	Title     string
	FullWidth bool
	Head      templ.Component
	Scripts   templ.Component
}

// AppName is the configured application name, or the default when rendered
// outside a request.
func AppName(ctx context.Context) string {
	cfg := ctxkeys.Config(ctx)
	if cfg == nil || cfg.AppName == "" {
		return defaultAppName
	}
	return cfg.AppName
}

func pageTitle(ctx context.Context, title string) string {
	if title == "" {
		return AppName(ctx)
	}
	return title + " · " + AppName(ctx)
}
