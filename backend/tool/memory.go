package tool

import (
	"context"
	"errors"
)

const (
	UpdateRoadmapToolName   = "update_roadmap"
	RetrieveHistoryToolName = "retrieve_history_tool"
)

var ErrNoSession = errors.New("tool called without a session")

type sessionKey struct{}

// ContextWithSession binds the session the memory tools operate on.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func SessionFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(sessionKey{}).(string)
	return sessionID, ok && sessionID != ""
}

type RoadmapWriter interface {
	UpdateRoadmap(ctx context.Context, sessionID string, milestones []string) (string, error)
}

type HistoryReader interface {
	RetrieveHistory(ctx context.Context, sessionID string) (string, error)
}

type UpdateRoadmapInput struct {
	Milestones []string `json:"milestones" jsonschema:"description=The ordered milestones that lead to the goal"`
}

func NewUpdateRoadmapTool(writer RoadmapWriter) *Tool {
	return NewTool(
		UpdateRoadmapToolName,
		"Saves the high-level milestones of the user's plan to memory.",
		func(ctx context.Context, input UpdateRoadmapInput) (string, error) {
			sessionID, ok := SessionFromContext(ctx)
			if !ok {
				return "", ErrNoSession
			}
			return writer.UpdateRoadmap(ctx, sessionID, input.Milestones)
		},
	)
}

type RetrieveHistoryInput struct{}

func NewRetrieveHistoryTool(reader HistoryReader) *Tool {
	return NewTool(
		RetrieveHistoryToolName,
		"Returns the current plan, the long-term history summary and the recent daily logs of the user.",
		func(ctx context.Context, input RetrieveHistoryInput) (string, error) {
			sessionID, ok := SessionFromContext(ctx)
			if !ok {
				return "", ErrNoSession
			}
			return reader.RetrieveHistory(ctx, sessionID)
		},
		WithReadonly(true),
	)
}
