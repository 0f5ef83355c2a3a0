package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/skyplayer/internal/http/handlers"
)

type problem struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

type commandResult struct {
	Result any `json:"result"`
}

func args(kv map[string]any) map[string]any {
	if kv == nil {
		kv = map[string]any{}
	}
	return map[string]any{"arguments": kv}
}

func TestPlayerHandler_CommandErrors(t *testing.T) {
	env := newPlayerEnv(t)

	tests := []struct {
		name   string
		method string
		body   map[string]any
		status int
		code   string
	}{
		{"unknown method", "rewind", args(nil), http.StatusNotFound, "NOT_IMPLEMENTED"},
		{"init without url", "initPlayerWithNetwork", args(nil), http.StatusBadRequest, "INVALID_URL"},
		{"init with empty url", "initPlayerWithNetwork", args(map[string]any{"url": ""}), http.StatusBadRequest, "INVALID_URL"},
		{"seek without position", "seekTo", args(map[string]any{}), http.StatusBadRequest, "INVALID_POSITION"},
		{"texture without player", "createTexture", args(nil), http.StatusConflict, "TEXTURE_ERROR"},
		{"non-string track id", "setResolution", args(map[string]any{"resolutionId": 720}), http.StatusBadRequest, "INVALID_ARGUMENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, env.router, http.MethodPost, command(tt.method), tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			p := decode[problem](t, rec)
			assert.Contains(t, p.Detail, tt.code)
		})
	}
}

func TestPlayerHandler_CommandsWithoutPlayerAreNoOps(t *testing.T) {
	env := newPlayerEnv(t)

	for _, method := range []string{"play", "pause", "releasePlayer", "releaseSurface"} {
		rec := doJSON(t, env.router, http.MethodPost, command(method), args(nil))
		require.Equal(t, http.StatusOK, rec.Code, method)
		assert.Nil(t, decode[commandResult](t, rec).Result, method)
	}

	rec := doJSON(t, env.router, http.MethodPost, command("seekTo"), args(map[string]any{"position": 1000}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlayerHandler_StateBeforeInit(t *testing.T) {
	env := newPlayerEnv(t)

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/player/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	state := decode[handlers.PlayerStateResponse](t, rec)
	assert.False(t, state.Initialized)
	assert.Nil(t, state.LastError)
	assert.Equal(t, false, state.Snapshot["isPlaying"])
	assert.Equal(t, "[]", state.Snapshot["availableAudioTracks"])
	assert.Nil(t, state.Snapshot["surfaceId"])
}

func TestPlayerHandler_PlaybackLifecycle(t *testing.T) {
	env := newPlayerEnv(t)
	url := serveHLS(t)

	rec := doJSON(t, env.router, http.MethodPost, command("initPlayerWithNetwork"), args(map[string]any{"url": url}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	getState := func() handlers.PlayerStateResponse {
		return decode[handlers.PlayerStateResponse](t, doJSON(t, env.router, http.MethodGet, "/api/v1/player/state", nil))
	}
	require.Eventually(t, func() bool {
		s := getState()
		return s.Snapshot["duration"] == float64(30_000) && s.Snapshot["isPlaying"] == true
	}, 2*time.Second, 10*time.Millisecond)

	state := getState()
	assert.True(t, state.Initialized)
	assert.Equal(t, url, state.URL)

	t.Run("tracks", func(t *testing.T) {
		var tracks handlers.TracksResponse
		require.Eventually(t, func() bool {
			rec := doJSON(t, env.router, http.MethodGet, "/api/v1/player/tracks", nil)
			tracks = decode[handlers.TracksResponse](t, rec)
			return len(tracks.Audio) == 2 && len(tracks.Resolutions) == 2
		}, 2*time.Second, 10*time.Millisecond)

		require.Len(t, tracks.Resolutions, 2)
		assert.Equal(t, "1920x1080", tracks.Resolutions[0].ID)
		assert.Equal(t, "1280x720", tracks.Resolutions[1].ID)

		require.Len(t, tracks.Audio, 2)
		names := map[string]string{}
		for _, a := range tracks.Audio {
			names[a.ID] = a.DisplayName
		}
		assert.Equal(t, "English", names["en"])
		assert.Equal(t, "French", names["fr"])

		require.Len(t, tracks.Subtitles, 1)
		assert.Equal(t, "English", tracks.Subtitles[0].DisplayName)
	})

	t.Run("texture", func(t *testing.T) {
		rec := doJSON(t, env.router, http.MethodPost, command("createTexture"), args(nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		first := decode[commandResult](t, rec).Result
		assert.NotNil(t, first)
		assert.Equal(t, 1, env.registry.Live())

		rec = doJSON(t, env.router, http.MethodPost, command("createTexture"), args(nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, first, decode[commandResult](t, rec).Result)

		rec = doJSON(t, env.router, http.MethodPost, command("setSurfaceSize"), args(map[string]any{"width": 1280, "height": 720}))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("selection", func(t *testing.T) {
		rec := doJSON(t, env.router, http.MethodPost, command("setResolution"), args(map[string]any{"resolutionId": "1280x720"}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, map[string]any{"applied": true}, decode[commandResult](t, rec).Result)

		rec = doJSON(t, env.router, http.MethodPost, command("setAudioTrack"), args(map[string]any{"trackId": "xx"}))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"applied": false}, decode[commandResult](t, rec).Result)
	})

	t.Run("pause and seek", func(t *testing.T) {
		rec := doJSON(t, env.router, http.MethodPost, command("pause"), args(nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Eventually(t, func() bool { return getState().Snapshot["isPlaying"] == false }, time.Second, 10*time.Millisecond)

		rec = doJSON(t, env.router, http.MethodPost, command("seekTo"), args(map[string]any{"position": 12_000}))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Eventually(t, func() bool {
			pos, _ := getState().Snapshot["position"].(float64)
			return pos >= 12_000 && pos < 30_000
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("release", func(t *testing.T) {
		rec := doJSON(t, env.router, http.MethodPost, command("releasePlayer"), args(nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, getState().Initialized)
		assert.Equal(t, 0, env.registry.Live())
	})
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		lang  mo.Option[string]
		label mo.Option[string]
		id    string
		want  string
	}{
		{"language tag", mo.Some("de"), mo.Some("Deutsch"), "de", "German"},
		{"regional tag", mo.Some("pt-BR"), mo.None[string](), "pt-BR", "Brazilian Portuguese"},
		{"undetermined uses label", mo.Some("und"), mo.Some("Commentary"), "und", "Commentary"},
		{"bad tag uses label", mo.Some("not a tag!"), mo.Some("Director"), "x", "Director"},
		{"nothing uses id", mo.None[string](), mo.None[string](), "und", "und"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, handlers.DisplayName(tt.lang, tt.label, tt.id))
		})
	}
}
