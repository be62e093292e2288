// Package httpapi is the local control server. It exposes a liveness
// probe, source administration and a tail of recent log entries, and is
// meant to be bound to the loopback interface only.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// livenessMessage is what GET / returns while the engine runs.
const livenessMessage = "syncbridge is running"

// Server wires the control endpoints to the source admin service.
type Server struct {
	admin driving.SourceAdmin
}

// NewServer creates the control server.
func NewServer(admin driving.SourceAdmin) *Server {
	return &Server{admin: admin}
}

// Router builds the gin handler.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", s.live)
	router.GET("/sources", s.listSources)
	router.POST("/source", s.mergeSources)
	router.GET("/logs", s.tailLogs)
	return router
}

// Run serves the control API on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *Server) live(c *gin.Context) {
	c.String(http.StatusOK, livenessMessage)
}

func (s *Server) listSources(c *gin.Context) {
	sources, err := s.admin.ListSources(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sources)
}

// mergeSources accepts a map of source id to partial source object and
// shallow-merges each into the store.
func (s *Server) mergeSources(c *gin.Context) {
	var patches map[string]map[string]any
	if err := c.ShouldBindJSON(&patches); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be an object of source patches"})
		return
	}

	if err := s.admin.MergeSources(c.Request.Context(), patches); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"merged": len(patches)})
}

func (s *Server) tailLogs(c *gin.Context) {
	n := 100
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be an integer"})
			return
		}
		n = parsed
	}
	c.JSON(http.StatusOK, logger.Tail(n))
}
