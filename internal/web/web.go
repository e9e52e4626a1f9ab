// Package web serves the embedded browser view.
package web

import (
	"embed"
	"net/http"
)

//go:embed index.html
var assets embed.FS

// Handler serves the view at "/".
func Handler() http.Handler {
	return http.FileServerFS(assets)
}
