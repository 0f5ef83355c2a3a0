package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/skyplayer/internal/engine/hls"
	"github.com/jmylchreest/skyplayer/internal/http/handlers"
	"github.com/jmylchreest/skyplayer/internal/surface"
	"github.com/jmylchreest/skyplayer/internal/transport"
)

const testMultivariant = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="English",LANGUAGE="en",DEFAULT=YES,AUTOSELECT=YES,URI="audio_en.m3u8"
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="Francais",LANGUAGE="fr",DEFAULT=NO,AUTOSELECT=YES,URI="audio_fr.m3u8"
#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",NAME="English CC",LANGUAGE="en",DEFAULT=NO,AUTOSELECT=NO,URI="subs_en.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=5000000,CODECS="avc1.640028,mp4a.40.2",RESOLUTION=1920x1080,AUDIO="aud",SUBTITLES="subs"
hi.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000,CODECS="avc1.4d401f,mp4a.40.2",RESOLUTION=1280x720,AUDIO="aud",SUBTITLES="subs"
mid.m3u8
`

const testMedia = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:10.000,
seg0.ts
#EXTINF:10.000,
seg1.ts
#EXTINF:10.000,
seg2.ts
#EXT-X-ENDLIST
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serveHLS serves the multivariant fixture at /master.m3u8.
func serveHLS(t *testing.T) string {
	t.Helper()
	routes := map[string]string{
		"/master.m3u8": testMultivariant,
		"/hi.m3u8":     testMedia,
		"/mid.m3u8":    testMedia,
	}
	mux := http.NewServeMux()
	for path, body := range routes {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
			_, _ = w.Write([]byte(body))
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server.URL + "/master.m3u8"
}

type playerEnv struct {
	host     *transport.Host
	registry *surface.MemoryRegistry
	router   *chi.Mux
}

func newPlayerEnv(t *testing.T) *playerEnv {
	t.Helper()

	logger := quietLogger()
	registry := surface.NewMemoryRegistry()
	host := transport.NewHost(transport.HostOptions{
		Factory:          hls.Factory(hls.Options{Logger: logger}),
		Registry:         registry,
		PositionInterval: 20 * time.Millisecond,
		Logger:           logger,
	})
	t.Cleanup(host.Release)

	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("Test API", "1.0.0"))
	handlers.NewPlayerHandler(transport.NewDispatcher(host).WithLogger(logger), host).Register(api)

	events := handlers.NewEventsHandler(host.Hub(), 0)
	events.SetHeartbeatInterval(50 * time.Millisecond)
	events.RegisterSSE(router)

	return &playerEnv{host: host, registry: registry, router: router}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func command(method string) string {
	return fmt.Sprintf("/api/v1/player/commands/%s", method)
}
