package server

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFiles embed.FS

// staticHandler serves the single-page chat UI compiled into the binary.
func staticHandler() (http.Handler, error) {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("server: load embedded UI: %w", err)
	}
	return http.FileServer(http.FS(sub)), nil
}
