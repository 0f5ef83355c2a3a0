package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/skyplayer/internal/models"
	"github.com/jmylchreest/skyplayer/internal/repository"
)

// HistoryHandler serves recorded playback sessions.
type HistoryHandler struct {
	repo repository.PlaybackSessionRepository
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(repo repository.PlaybackSessionRepository) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// ListSessionsInput is the input for listing sessions.
type ListSessionsInput struct {
	Limit int `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum sessions to return"`
}

// ListSessionsOutput is the output for listing sessions.
type ListSessionsOutput struct {
	Body struct {
		Sessions []SessionResponse `json:"sessions"`
	}
}

// GetSessionInput is the input for getting a session.
type GetSessionInput struct {
	ID string `path:"id" doc:"Session ID (ULID)"`
}

// GetSessionOutput is the output for getting a session.
type GetSessionOutput struct {
	Body SessionResponse
}

// Register registers the history routes.
func (h *HistoryHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listPlaybackSessions",
		Method:      "GET",
		Path:        "/api/v1/history/sessions",
		Summary:     "List playback sessions",
		Description: "Returns recent playback sessions, newest first",
		Tags:        []string{"History"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getPlaybackSession",
		Method:      "GET",
		Path:        "/api/v1/history/sessions/{id}",
		Summary:     "Get playback session",
		Tags:        []string{"History"},
	}, h.Get)
}

// List returns recent sessions.
func (h *HistoryHandler) List(ctx context.Context, input *ListSessionsInput) (*ListSessionsOutput, error) {
	sessions, err := h.repo.ListRecent(ctx, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list sessions", err)
	}

	out := &ListSessionsOutput{}
	out.Body.Sessions = make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out.Body.Sessions = append(out.Body.Sessions, SessionFromModel(s))
	}
	return out, nil
}

// Get returns one session.
func (h *HistoryHandler) Get(ctx context.Context, input *GetSessionInput) (*GetSessionOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid session id", err)
	}

	session, err := h.repo.GetByID(ctx, id)
	if errors.Is(err, models.ErrSessionNotFound) {
		return nil, huma.Error404NotFound("session not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get session", err)
	}
	return &GetSessionOutput{Body: SessionFromModel(session)}, nil
}
