package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/camden-git/foodlens/media"
	"github.com/go-chi/chi/v5"
)

// AssetServer serves files of one asset subdirectory through the store.
// Mounted on a wildcard route, e.g.
//
//	r.Get("/api/previews/*", AssetServer(store, "previews"))
func AssetServer(store media.Store, subDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "*")
		if name == "" || strings.Contains(name, "..") || strings.Contains(name, "/") {
			WriteAPIError(w, http.StatusBadRequest, "invalid_asset_path", "Invalid asset path")
			return
		}

		file, info, err := store.Open(path.Join(subDir, name))
		if err != nil {
			if errors.Is(err, media.ErrAssetNotFound) {
				http.NotFound(w, r)
				return
			}
			log.Printf("handlers: failed to open asset %s/%s: %v", subDir, name, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer file.Close()

		seeker, ok := file.(io.ReadSeeker)
		if !ok {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))
		http.ServeContent(w, r, info.Name(), info.ModTime(), seeker)
	}
}
