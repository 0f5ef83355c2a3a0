package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/jmylchreest/skyplayer/internal/models"
	"github.com/jmylchreest/skyplayer/internal/transport"
)

// PlayerHandler exposes the command dispatcher and player state over HTTP.
type PlayerHandler struct {
	dispatcher *transport.Dispatcher
	host       *transport.Host
}

// NewPlayerHandler creates a player handler.
func NewPlayerHandler(dispatcher *transport.Dispatcher, host *transport.Host) *PlayerHandler {
	return &PlayerHandler{dispatcher: dispatcher, host: host}
}

// CommandRequest carries a command's arguments.
type CommandRequest struct {
	Arguments map[string]any `json:"arguments,omitempty" doc:"Command arguments, e.g. {\"url\": \"...\"} or {\"position\": 1500}"`
}

// CommandInput is the input for running a command.
type CommandInput struct {
	Method string         `path:"method" doc:"Command name, e.g. initPlayerWithNetwork, play, seekTo"`
	Body   CommandRequest `required:"false"`
}

// CommandOutput is the output for running a command.
type CommandOutput struct {
	Body struct {
		Result any `json:"result"`
	}
}

// PlayerInput is the input for the read-only player endpoints.
type PlayerInput struct{}

// PlayerStateOutput is the output for the state endpoint.
type PlayerStateOutput struct {
	Body PlayerStateResponse
}

// TracksOutput is the output for the tracks endpoint.
type TracksOutput struct {
	Body TracksResponse
}

// Register registers the player routes.
func (h *PlayerHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "runPlayerCommand",
		Method:      "POST",
		Path:        "/api/v1/player/commands/{method}",
		Summary:     "Run player command",
		Description: "Runs a named player command with loosely typed arguments",
		Tags:        []string{"Player"},
	}, h.RunCommand)

	huma.Register(api, huma.Operation{
		OperationID: "getPlayerState",
		Method:      "GET",
		Path:        "/api/v1/player/state",
		Summary:     "Get player state",
		Description: "Returns the latest state snapshot and the last terminal error",
		Tags:        []string{"Player"},
	}, h.GetState)

	huma.Register(api, huma.Operation{
		OperationID: "getPlayerTracks",
		Method:      "GET",
		Path:        "/api/v1/player/tracks",
		Summary:     "List tracks",
		Description: "Returns selectable resolutions, audio and subtitle tracks with display names",
		Tags:        []string{"Player"},
	}, h.GetTracks)
}

// RunCommand dispatches a command.
func (h *PlayerHandler) RunCommand(ctx context.Context, input *CommandInput) (*CommandOutput, error) {
	result, err := h.dispatcher.Dispatch(ctx, input.Method, transport.Args(input.Body.Arguments))
	if err != nil {
		return nil, commandHTTPError(err)
	}
	out := &CommandOutput{}
	out.Body.Result = result
	return out, nil
}

// commandHTTPError maps a dispatcher failure onto an HTTP status.
func commandHTTPError(err error) error {
	ce, ok := transport.AsCommandError(err)
	if !ok {
		return huma.Error500InternalServerError(err.Error())
	}

	status := http.StatusInternalServerError
	switch {
	case ce.IsArgumentError():
		status = http.StatusBadRequest
	case ce.Code == transport.CodeNotImplemented:
		status = http.StatusNotFound
	case ce.Code == transport.CodeTextureError:
		status = http.StatusConflict
	}
	return huma.NewError(status, ce.Error())
}

// GetState returns the current snapshot.
func (h *PlayerHandler) GetState(_ context.Context, _ *PlayerInput) (*PlayerStateOutput, error) {
	state, url, initialized := h.currentState()

	resp := PlayerStateResponse{
		Initialized: initialized,
		URL:         url,
		Snapshot:    transport.EncodeSnapshot(state),
	}
	if p, _, ok := h.host.Current(); ok {
		resp.LastError = PlaybackErrorFromEngine(p.LastError())
	}
	return &PlayerStateOutput{Body: resp}, nil
}

// GetTracks lists every selectable track.
func (h *PlayerHandler) GetTracks(_ context.Context, _ *PlayerInput) (*TracksOutput, error) {
	state, _, _ := h.currentState()
	return &TracksOutput{Body: tracksFromState(state)}, nil
}

// currentState prefers the live player and falls back to the last published
// snapshot, then to an empty one.
func (h *PlayerHandler) currentState() (models.PlaybackState, string, bool) {
	if p, url, ok := h.host.Current(); ok {
		return p.State(), url, true
	}
	if state, ok := h.host.Hub().Latest(); ok {
		return state, "", false
	}
	return models.PlaybackState{}, "", false
}

func tracksFromState(s models.PlaybackState) TracksResponse {
	return TracksResponse{
		Resolutions: lo.Map(s.AvailableVideoResolutions, func(r models.VideoResolution, _ int) ResolutionResponse {
			return ResolutionResponse{
				ID:       r.ID,
				Width:    r.Width,
				Height:   r.Height,
				Bitrate:  r.Bitrate,
				Selected: isSelected(s.SelectedResolutionID, r.ID),
			}
		}),
		Audio: lo.Map(s.AvailableAudioTracks, func(t models.AudioTrack, _ int) TrackResponse {
			return trackResponse(t.ID, t.Language, t.Label, s.SelectedAudioTrackID)
		}),
		Subtitles: lo.Map(s.AvailableSubtitleTracks, func(t models.SubtitleTrack, _ int) TrackResponse {
			return trackResponse(t.ID, t.Language, t.Label, s.SelectedSubtitleTrackID)
		}),
	}
}

func trackResponse(id string, lang, label, selected mo.Option[string]) TrackResponse {
	return TrackResponse{
		ID:          id,
		Language:    lang.OrEmpty(),
		Label:       label.OrEmpty(),
		DisplayName: DisplayName(lang, label, id),
		Selected:    isSelected(selected, id),
	}
}

func isSelected(selected mo.Option[string], id string) bool {
	v, ok := selected.Get()
	return ok && v == id
}

// DisplayName names a track for people: the English name of its language
// when the tag is known, otherwise its label, otherwise its id.
func DisplayName(lang, label mo.Option[string], id string) string {
	if l, ok := lang.Get(); ok && l != models.UndeterminedLanguage {
		if tag, err := language.Parse(l); err == nil {
			if name := display.English.Tags().Name(tag); name != "" {
				return name
			}
		}
	}
	if l, ok := label.Get(); ok && l != "" {
		return l
	}
	return id
}
