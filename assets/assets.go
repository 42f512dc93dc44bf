// Package assets embeds the stylesheets, scripts and map icons served under /assets/.
package assets

import "embed"

//go:embed css js img
var AssetsFS embed.FS
