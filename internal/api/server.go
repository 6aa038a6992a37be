// Package api exposes the assistant over HTTP for local frontends.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vthunder/timebox/internal/logging"
	"github.com/vthunder/timebox/internal/plan"
	"github.com/vthunder/timebox/internal/router"
)

type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

type ChatResponse struct {
	Response string `json:"response"`
	Status   string `json:"status"`
}

// TaskView is the wire shape frontends consume. It is flatter than the
// stored task and carries a derived duration.
type TaskView struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Start            string `json:"start"`
	End              string `json:"end"`
	Priority         string `json:"priority"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
	Status           string `json:"status"`
}

type RecommendationResponse struct {
	TaskID          string `json:"taskId"`
	Title           string `json:"title"`
	DurationMinutes int    `json:"durationMinutes"`
	Reason          string `json:"reason"`
}

type Server struct {
	rt     *router.Router
	store  *plan.Store
	engine *gin.Engine
}

func NewServer(rt *router.Router, store *plan.Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), corsMiddleware())

	s := &Server{rt: rt, store: store, engine: engine}

	api := engine.Group("/api")
	api.POST("/chat", s.handleChat)
	api.GET("/tasks", s.handleTasks)
	api.POST("/recommend", s.handleRecommend)

	return s
}

// Run blocks serving HTTP on addr.
func (s *Server) Run(addr string) error {
	logging.Info("api", "listening on %s", addr)
	return s.engine.Run(addr)
}

// Engine exposes the underlying gin engine for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	reply := s.rt.Route(c.Request.Context(), req.Message)
	c.JSON(http.StatusOK, ChatResponse{Response: reply, Status: "success"})
}

func (s *Server) handleTasks(c *gin.Context) {
	date := c.DefaultQuery("date", "today")
	tasks, err := s.store.Tasks(date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, TaskView{
			ID:               t.Key(),
			Title:            t.Title,
			Start:            t.Start,
			End:              t.End,
			Priority:         "medium",
			EstimatedMinutes: durationMinutes(t),
			Status:           t.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tasks": views})
}

// handleRecommend suggests the next block of work: the first
// unfinished task of the day, or a generic 25-minute block when the
// plan is empty.
func (s *Server) handleRecommend(c *gin.Context) {
	tasks, err := s.store.Tasks("today")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, t := range tasks {
		if plan.IsFinished(t.Status) {
			continue
		}
		minutes := durationMinutes(t)
		if minutes <= 0 {
			minutes = 25
		}
		c.JSON(http.StatusOK, RecommendationResponse{
			TaskID:          t.Key(),
			Title:           t.Title,
			DurationMinutes: minutes,
			Reason:          "next unfinished task on today's plan",
		})
		return
	}

	c.JSON(http.StatusOK, RecommendationResponse{
		Title:           "Free block",
		DurationMinutes: 25,
		Reason:          "no unfinished tasks on today's plan",
	})
}

func durationMinutes(t plan.Task) int {
	start, ok1 := plan.NormalizeTimestamp(t.Start, "")
	end, ok2 := plan.NormalizeTimestamp(t.End, "")
	if !ok1 || !ok2 || !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
