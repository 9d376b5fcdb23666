// Package web provides the embedded templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var files embed.FS

// Templates returns the template tree with the templates/ prefix stripped,
// so "partials/repo_card.html" is addressed as "partials/repo_card".
func Templates() fs.FS {
	return mustSub("templates")
}

// Static returns the files served under /static/.
func Static() fs.FS {
	return mustSub("static")
}

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(files, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
