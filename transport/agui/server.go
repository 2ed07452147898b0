package agui

import (
	"net/http"
	"regexp"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var validRunID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Server is the HTTP surface over a Broadcaster: a single SSE endpoint that
// streams one run's events to a browser or dev tool.
type Server struct {
	broadcaster *Broadcaster
	engine      *gin.Engine
}

// NewServer builds a gin.Engine with permissive CORS (this surface is for
// local/dev tooling, not a public API) and a GET /events route fed by
// broadcaster.
func NewServer(broadcaster *Broadcaster) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet},
		AllowHeaders:    []string{"Content-Type"},
	}))

	s := &Server{broadcaster: broadcaster, engine: engine}
	engine.GET("/events", s.handleEvents)
	return s
}

// Engine returns the underlying gin.Engine for mounting under a larger
// mux, or calling Run directly.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) handleEvents(c *gin.Context) {
	runID := c.Query("run_id")
	if runID == "" {
		c.String(http.StatusBadRequest, "run_id query parameter required")
		return
	}
	if !validRunID.MatchString(runID) {
		c.String(http.StatusBadRequest, "run_id contains invalid characters")
		return
	}

	ch, unsubscribe := s.broadcaster.subscribe(runID)
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.SSEvent("connected", gin.H{"run_id": runID})
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			c.Render(-1, sseRawEvent{data: payload})
			c.Writer.Flush()
		}
	}
}

// sseRawEvent writes a pre-marshaled JSON payload as an SSE "message" event
// without gin re-marshaling it.
type sseRawEvent struct {
	data []byte
}

func (e sseRawEvent) Render(w http.ResponseWriter) error {
	_, err := w.Write(append(append([]byte("event: message\ndata: "), e.data...), '\n', '\n'))
	return err
}

func (e sseRawEvent) WriteContentType(http.ResponseWriter) {}
