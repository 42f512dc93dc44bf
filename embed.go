package usermap

import "embed"

// ContentFS contains the markdown pages (information, data privacy).
// CONTENT_PATH overrides it in development so edits show without a rebuild.
//
//go:embed content/*.md
var ContentFS embed.FS
