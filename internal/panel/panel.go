package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed web
var content embed.FS

// staticPrefix is the URL prefix for icons and stylesheets.
const staticPrefix = "/static/"

// Handler returns an http.Handler for the selection page ("/") and its
// assets ("/static/...").
//
// When dir is non-empty and the directory exists, files found there are
// served in preference to the embedded assets. A missing dir is ignored.
// Panics if the embedded web assets cannot be loaded (build error).
func Handler(dir string) http.Handler {
	webFS, err := fs.Sub(content, "web")
	if err != nil {
		panic(fmt.Sprintf("panel: failed to load embedded web assets: %v", err))
	}
	embedded := http.FS(webFS)

	var overlay http.FileSystem
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			overlay = http.Dir(dir)
		}
	}

	embeddedServer := http.FileServer(embedded)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The page is regenerated from the document on every load.
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		upath := path.Clean("/" + r.URL.Path)
		if upath == "/" {
			embeddedServer.ServeHTTP(w, r)
			return
		}

		if !strings.HasPrefix(upath+"/", staticPrefix) {
			http.NotFound(w, r)
			return
		}

		if overlay != nil {
			name := strings.TrimPrefix(upath, staticPrefix)
			if serveFile(w, r, overlay, name) {
				return
			}
		}
		embeddedServer.ServeHTTP(w, r)
	})
}

// serveFile serves name from fsys when it exists and is a regular file.
func serveFile(w http.ResponseWriter, r *http.Request, fsys http.FileSystem, name string) bool {
	f, err := fsys.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}
