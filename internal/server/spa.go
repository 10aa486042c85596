package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// isHTMLRoute reports whether a request should get the SPA shell: GETs for
// paths without a file extension, or directory-style paths.
func isHTMLRoute(method, urlPath string) bool {
	return method == http.MethodGet && (!strings.Contains(urlPath, ".") || strings.HasSuffix(urlPath, "/"))
}

// serveSPA is the catch-all: client-side routes get index.html, anything
// else is looked up as a static asset.
func (s *Server) serveSPA(c *gin.Context) {
	urlPath := c.Request.URL.Path

	// Unknown API routes are never the SPA
	if urlPath == "/api" || strings.HasPrefix(urlPath, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	root := s.config.Server.StaticDir

	if isHTMLRoute(c.Request.Method, urlPath) {
		index := filepath.Join(root, "index.html")
		if !isRegularFile(index) {
			s.logger.Error().Str("static_dir", root).Msg("SPA index.html missing")
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Header("Cache-Control", "no-cache")
		c.File(index)
		return
	}

	// path.Clean on a rooted path cannot climb above root
	file := filepath.Join(root, filepath.FromSlash(path.Clean("/"+urlPath)))
	if !isRegularFile(file) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.File(file)
}

func isRegularFile(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.Mode().IsRegular()
}
