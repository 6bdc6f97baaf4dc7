package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"daily-quiz-service/internal/app"
)

// NewRouter exposes the REST read side and the websocket game endpoint.
func NewRouter(service *app.QuizService, log zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "liveSessions": service.LiveSessions()})
	})

	api := &restHandler{service: service}
	v1 := router.Group("/api/v1")
	{
		users := v1.Group("/users/:userId")
		users.GET("/availability", api.availability)
		users.GET("/history", api.history)
		users.GET("/achievements", api.achievements)
		users.GET("/stats", api.stats)

		v1.GET("/sessions/:sessionId", api.session)
		v1.GET("/sessions/:sessionId/progress", api.progress)
	}

	ws := NewWSHandler(service, log)
	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWS(c.Writer, c.Request)
	})
	return router
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

type restHandler struct {
	service *app.QuizService
}

func (h *restHandler) availability(c *gin.Context) {
	a, err := h.service.CheckAvailability(c.Request.Context(), c.Param("userId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *restHandler) history(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorPayload{Code: "invalid_request", Message: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	history, err := h.service.History(c.Request.Context(), c.Param("userId"), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": history})
}

func (h *restHandler) achievements(c *gin.Context) {
	records, err := h.service.Achievements(c.Request.Context(), c.Param("userId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": records})
}

func (h *restHandler) stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("userId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// session never reveals the answers of questions still to come.
func (h *restHandler) session(c *gin.Context) {
	state, err := h.service.State(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(state))
}

func (h *restHandler) progress(c *gin.Context) {
	progress, err := h.service.Progress(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func abortWithError(c *gin.Context, err error) {
	payload, status := toErrorPayload(err)
	c.AbortWithStatusJSON(status, payload)
}
