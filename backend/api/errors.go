package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/furisto/seyal/backend/agent"
	"github.com/furisto/seyal/backend/memory"
	"github.com/furisto/seyal/backend/model"
	"github.com/furisto/seyal/shared/resilience"
	"github.com/gin-gonic/gin"
)

var errInvalidRequest = errors.New("invalid request")

func statusFor(err error) int {
	var providerErr *model.ProviderError
	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, agent.ErrEmptyGoal),
		memory.IsValidation(err) && !errors.Is(err, memory.ErrTaskNotFound):
		return http.StatusBadRequest
	case memory.IsNotFound(err), errors.Is(err, memory.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, agent.ErrNotEnoughData), errors.Is(err, agent.ErrMissingAPIKey):
		return http.StatusPreconditionFailed
	case errors.As(err, &providerErr),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, agent.ErrTooManyToolRounds),
		errors.Is(err, agent.ErrEmptyResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var providerNames = map[model.ProviderKind]string{
	model.ProviderKindGemini:    "Google Gemini",
	model.ProviderKindAnthropic: "Anthropic",
	model.ProviderKindOpenAI:    "OpenAI",
}

// userMessage turns err into the sentence shown to a person.
func (s *Server) userMessage(err error) string {
	switch {
	case errors.Is(err, agent.ErrEmptyGoal):
		return "Please enter a goal."
	case errors.Is(err, memory.ErrEmptyUpdate):
		return "Please enter your daily progress."
	case errors.Is(err, agent.ErrNotEnoughData):
		return "Not enough data yet. Log a few days of actions before reflecting!"
	case errors.Is(err, agent.ErrMissingAPIKey):
		return fmt.Sprintf("Please provide a %s API Key to run the agents.", providerNames[s.runtime.Provider()])
	}

	var providerErr *model.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Message()
	}
	return memory.SanitizeError(err).Error()
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		slog.DebugContext(c.Request.Context(), "request rejected", "path", c.FullPath(), "status", status, "error", err)
	}

	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   s.userMessage(err),
	})
}
