package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/furisto/seyal/backend/memory"
	"github.com/gin-gonic/gin"
)

const (
	Title   = "SEYAL: The Action Agent"
	Caption = "Sequential Multi-Agent System with Context Compaction"

	tabPlan    = "plan"
	tabAction  = "action"
	tabReflect = "reflect"
)

type pageData struct {
	Title        string
	Caption      string
	Tab          string
	State        *memory.State
	Moods        []memory.Mood
	Flash        Flash
	HasAPIKey    bool
	ProviderName string
	Usage        memory.TokenUsage
	Cost         string
	Internals    map[string]any
}

// internals is the debug view of a session's memory.
func internals(state *memory.State) map[string]any {
	view := map[string]any{}
	view["Roadmap"] = state.Roadmap
	view["Recent Detailed Logs (Last 3-5 days)"] = state.Logs
	view["Long Term Memory Summary (Compacted History)"] = state.LongTermSummary
	return view
}

func (s *Server) handleIndex(c *gin.Context) {
	ctx := c.Request.Context()
	id := sessionID(c)

	state, err := s.runtime.State(ctx, id)
	if err != nil {
		c.HTML(statusFor(err), "error.html", gin.H{"title": Title, "error": s.userMessage(err)})
		return
	}

	tab := c.DefaultQuery("tab", tabPlan)
	switch tab {
	case tabPlan, tabAction, tabReflect:
	default:
		tab = tabPlan
	}

	c.HTML(http.StatusOK, "index.html", pageData{
		Title:        Title,
		Caption:      Caption,
		Tab:          tab,
		State:        state,
		Moods:        memory.Moods,
		Flash:        s.notices.Pop(id),
		HasAPIKey:    s.runtime.HasAPIKey(ctx, id),
		ProviderName: providerNames[s.runtime.Provider()],
		Usage:        state.TotalUsage(),
		Cost:         formatCost(s.runtime.Cost(state)),
		Internals:    internals(state),
	})
}

func (s *Server) redirect(c *gin.Context, tab string) {
	switch tab {
	case tabPlan, tabAction, tabReflect:
	default:
		tab = tabPlan
	}
	c.Redirect(http.StatusSeeOther, "/?tab="+tab)
}

func (s *Server) flashError(c *gin.Context, prefix string, err error) {
	kind := NoticeError
	if statusFor(err) == http.StatusPreconditionFailed {
		kind = NoticeWarning
	}

	text := s.userMessage(err)
	if status := statusFor(err); prefix != "" && status >= http.StatusInternalServerError {
		text = fmt.Sprintf("%s: %s", prefix, text)
	}
	s.notices.Add(sessionID(c), Notice{Kind: kind, Text: text})
}

func (s *Server) handlePlan(c *gin.Context) {
	id := sessionID(c)

	result, err := s.runtime.GenerateRoadmap(c.Request.Context(), id, c.PostForm("goal"))
	if err != nil {
		s.flashError(c, "Error during planning", err)
		s.redirect(c, tabPlan)
		return
	}

	s.notices.Add(id, Notice{Kind: NoticeSuccess, Text: "Roadmap created!"})
	s.notices.SetPlannerReply(id, result.Reply)
	s.redirect(c, tabPlan)
}

func (s *Server) handleTasks(c *gin.Context) {
	if _, err := s.runtime.GenerateTasks(c.Request.Context(), sessionID(c)); err != nil {
		s.flashError(c, "Error during task generation", err)
	}
	s.redirect(c, tabAction)
}

func (s *Server) handleToggle(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		s.flashError(c, "", fmt.Errorf("%w: task index %q", errInvalidRequest, c.Param("index")))
		s.redirect(c, tabAction)
		return
	}

	done := c.PostForm("done") == "on" || c.PostForm("done") == "true"
	if _, err := s.runtime.ToggleTask(c.Request.Context(), sessionID(c), index, done); err != nil {
		s.flashError(c, "", err)
	}
	s.redirect(c, tabAction)
}

func (s *Server) handleLog(c *gin.Context) {
	id := sessionID(c)

	mood := memory.Mood(c.DefaultPostForm("mood", string(memory.MoodNeutral)))
	result, err := s.runtime.LogProgress(c.Request.Context(), id, c.PostForm("update"), mood)
	if err != nil {
		if errors.Is(err, memory.ErrEmptyUpdate) {
			s.notices.Add(id, Notice{Kind: NoticeWarning, Text: s.userMessage(err)})
		} else {
			s.flashError(c, "", err)
		}
		s.redirect(c, tabAction)
		return
	}

	s.notices.Add(id, Notice{Kind: NoticeSuccess, Text: result.Message})
	if result.SummaryErr != nil {
		s.notices.Add(id, Notice{Kind: NoticeWarning, Text: "Summary generation failed: " + s.userMessage(result.SummaryErr)})
	}
	s.redirect(c, tabAction)
}

func (s *Server) handleReflect(c *gin.Context) {
	id := sessionID(c)

	report, err := s.runtime.Reflect(c.Request.Context(), id)
	if err != nil {
		s.flashError(c, "Error during reflection", err)
		s.redirect(c, tabReflect)
		return
	}

	s.notices.SetReport(id, report)
	s.redirect(c, tabReflect)
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.runtime.Reset(c.Request.Context(), sessionID(c)); err != nil {
		s.flashError(c, "", err)
	}
	s.redirect(c, tabPlan)
}

func (s *Server) handleAPIKey(c *gin.Context) {
	id := sessionID(c)

	if err := s.runtime.SetAPIKey(c.Request.Context(), id, c.PostForm("api_key")); err != nil {
		s.flashError(c, "", err)
	} else {
		s.notices.Add(id, Notice{Kind: NoticeSuccess, Text: "API key saved for this session."})
	}
	s.redirect(c, c.DefaultPostForm("tab", tabPlan))
}
