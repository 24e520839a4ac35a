package http

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// UIController serves the single-page front end from a build directory.
// Unknown non-API paths fall back to index.html so client-side routes work
// on reload.
type UIController struct {
	root string
}

// NewUIController returns nil when root does not hold an index.html.
func NewUIController(root string) *UIController {
	if root == "" {
		return nil
	}
	if info, err := os.Stat(filepath.Join(root, "index.html")); err != nil || info.IsDir() {
		return nil
	}
	return &UIController{root: root}
}

// Serve is the router's NoRoute handler.
func (ui *UIController) Serve(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(http.StatusNotFound, Response{Message: "Route not found"})
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, Response{Message: "Route not found"})
		return
	}

	// path.Clean on a rooted path cannot climb above the build directory.
	name := path.Clean("/" + c.Request.URL.Path)
	file := filepath.Join(ui.root, filepath.FromSlash(name))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		c.File(file)
		return
	}
	c.File(filepath.Join(ui.root, "index.html"))
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, Response{Message: "Route not found"})
}
