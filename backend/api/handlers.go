package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/furisto/seyal/backend/memory"
	"github.com/gin-gonic/gin"
)

const maxUpdateSize = 10 << 10

type stateResponse struct {
	SessionID       string                       `json:"session_id"`
	Goal            string                       `json:"goal,omitempty"`
	Roadmap         []string                     `json:"roadmap"`
	TasksMarkdown   string                       `json:"tasks_markdown"`
	Tasks           []memory.Task                `json:"tasks"`
	Logs            []memory.LogEntry            `json:"logs"`
	LongTermSummary string                       `json:"long_term_summary"`
	Compactions     int                          `json:"compactions"`
	Usage           map[string]memory.TokenUsage `json:"usage"`
	EstimatedCost   string                       `json:"estimated_cost"`
	HasAPIKey       bool                         `json:"has_api_key"`
	UpdatedAt       time.Time                    `json:"updated_at"`
}

func (s *Server) stateResponse(c *gin.Context, state *memory.State) stateResponse {
	return stateResponse{
		SessionID:       state.ID,
		Goal:            state.Goal,
		Roadmap:         state.Roadmap,
		TasksMarkdown:   state.TasksMarkdown,
		Tasks:           state.Tasks,
		Logs:            state.Logs,
		LongTermSummary: state.LongTermSummary,
		Compactions:     state.Compactions,
		Usage:           state.Usage,
		EstimatedCost:   s.runtime.Cost(state).StringFixed(6),
		HasAPIKey:       s.runtime.HasAPIKey(c.Request.Context(), state.ID),
		UpdatedAt:       state.UpdatedAt,
	}
}

func (s *Server) handleAPIState(c *gin.Context) {
	state, err := s.runtime.State(c.Request.Context(), sessionID(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    s.stateResponse(c, state),
	})
}

func (s *Server) handleAPIInternals(c *gin.Context) {
	state, err := s.runtime.State(c.Request.Context(), sessionID(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, internals(state))
}

type roadmapRequest struct {
	Goal string `json:"goal"`
}

func (s *Server) handleAPIRoadmap(c *gin.Context) {
	var req roadmapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortWithError(c, fmt.Errorf("%w: %s", errInvalidRequest, err))
		return
	}

	result, err := s.runtime.GenerateRoadmap(c.Request.Context(), sessionID(c), req.Goal)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"reply":   result.Reply,
		"data":    s.stateResponse(c, result.State),
	})
}

func (s *Server) handleAPITasks(c *gin.Context) {
	state, err := s.runtime.GenerateTasks(c.Request.Context(), sessionID(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    s.stateResponse(c, state),
	})
}

type toggleRequest struct {
	Done bool `json:"done"`
}

func (s *Server) handleAPIToggle(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		s.abortWithError(c, fmt.Errorf("%w: task index %q", errInvalidRequest, c.Param("index")))
		return
	}

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortWithError(c, fmt.Errorf("%w: %s", errInvalidRequest, err))
		return
	}

	state, err := s.runtime.ToggleTask(c.Request.Context(), sessionID(c), index, req.Done)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    s.stateResponse(c, state),
	})
}

type logRequest struct {
	Update string      `json:"update"`
	Mood   memory.Mood `json:"mood"`
}

func (s *Server) handleAPILog(c *gin.Context) {
	var req logRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortWithError(c, fmt.Errorf("%w: %s", errInvalidRequest, err))
		return
	}

	if len(req.Update) > maxUpdateSize {
		s.abortWithError(c, fmt.Errorf("%w: update exceeds maximum size of 10KB", errInvalidRequest))
		return
	}

	if req.Mood == "" {
		req.Mood = memory.MoodNeutral
	}

	result, err := s.runtime.LogProgress(c.Request.Context(), sessionID(c), req.Update, req.Mood)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	response := gin.H{
		"success":   true,
		"message":   result.Message,
		"entry":     result.Entry,
		"compacted": result.Compacted,
	}
	if result.SummaryErr != nil {
		response["summary_error"] = s.userMessage(result.SummaryErr)
	}
	c.JSON(http.StatusCreated, response)
}

func (s *Server) handleAPIReflect(c *gin.Context) {
	report, err := s.runtime.Reflect(c.Request.Context(), sessionID(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"report":  report,
	})
}

type apiKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleAPISetKey(c *gin.Context) {
	var req apiKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortWithError(c, fmt.Errorf("%w: %s", errInvalidRequest, err))
		return
	}

	if err := s.runtime.SetAPIKey(c.Request.Context(), sessionID(c), req.APIKey); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAPIReset(c *gin.Context) {
	if err := s.runtime.Reset(c.Request.Context(), sessionID(c)); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleAPINotices drains the pending notices of the session. Repeated kind
// parameters restrict the drain to those kinds.
func (s *Server) handleAPINotices(c *gin.Context) {
	var kinds []NoticeKind
	for _, kind := range c.QueryArray("kind") {
		kinds = append(kinds, NoticeKind(kind))
	}

	notices := s.notices.Drain(sessionID(c), kinds...)
	if notices == nil {
		notices = []Notice{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"notices": notices,
	})
}
