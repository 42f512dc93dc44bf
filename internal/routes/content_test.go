package routes

import (
	"io/fs"
	"testing/fstest"
)

func contentFixture() fs.FS {
	return fstest.MapFS{
		"information.md": {Data: []byte("---\ntitle: Information\n---\n\nAbout the map.\n")},
		"data-privacy.md": {Data: []byte("---\ntitle: Data privacy\nlastUpdated: 2024-05-01\n---\n\nWhat we store.\n")},
	}
}
