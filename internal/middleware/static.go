package middleware

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ridecredit/backend/internal/services"
)

// StaticFileServer serves API documents (the OpenAPI file) from dir. Unknown
// paths get a JSON 404 rather than a directory listing.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			services.SendErrorResponse(w, "Not found", http.StatusNotFound, nil)
			return
		}

		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			w.Header().Set("Content-Type", "application/yaml")
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		http.ServeFile(w, r, path)
	})
}
