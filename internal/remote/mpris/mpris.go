// Package mpris exposes the player on the D-Bus session bus as an MPRIS2
// media player, so desktop media keys and applets can drive it.
package mpris

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/jmylchreest/skyplayer/internal/engine"
	"github.com/jmylchreest/skyplayer/internal/models"
	"github.com/jmylchreest/skyplayer/internal/observability"
	"github.com/jmylchreest/skyplayer/internal/transport"
)

const (
	objectPath   = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootIface    = "org.mpris.MediaPlayer2"
	playerIface  = "org.mpris.MediaPlayer2.Player"
	busPrefix    = "org.mpris.MediaPlayer2."
	currentTrack = dbus.ObjectPath("/org/jmylchreest/skyplayer/track/current")
	noTrack      = dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")

	// DefaultName is the bus name suffix used when none is configured.
	DefaultName = "skyplayer"

	commandTimeout = 5 * time.Second
)

// Playback statuses.
const (
	StatusPlaying = "Playing"
	StatusPaused  = "Paused"
	StatusStopped = "Stopped"
)

// Dispatcher runs named player commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, method string, args transport.Args) (any, error)
}

// StateSource publishes player snapshots.
type StateSource interface {
	Latest() (models.PlaybackState, bool)
	Subscribe() *transport.Subscriber
	Unsubscribe(id string)
}

// propertySink receives property updates. *prop.Properties satisfies it.
type propertySink interface {
	SetMust(iface, property string, v any)
}

// Options configures a Remote.
type Options struct {
	// Name is the bus name suffix; the full name is org.mpris.MediaPlayer2.<Name>.
	Name   string
	Logger *slog.Logger
}

// Remote adapts MPRIS2 calls to player commands and mirrors player state
// into MPRIS2 properties.
type Remote struct {
	dispatcher Dispatcher
	states     StateSource
	name       string
	logger     *slog.Logger

	mu      sync.Mutex
	conn    *dbus.Conn
	props   propertySink
	status  string
	url     string
	stopped bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a remote. Call Connect to publish it on the session bus.
func New(dispatcher Dispatcher, states StateSource, opts Options) *Remote {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Remote{
		dispatcher: dispatcher,
		states:     states,
		name:       opts.Name,
		logger:     observability.WithComponent(opts.Logger, "mpris"),
		status:     StatusStopped,
	}
}

// BusName returns the well-known name the remote requests.
func (r *Remote) BusName() string {
	return busPrefix + r.name
}

// Connect publishes the remote on the session bus and starts mirroring
// state until ctx is cancelled or Close is called.
func (r *Remote) Connect(ctx context.Context) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connecting to session bus: %w", err)
	}
	if err := r.export(conn); err != nil {
		_ = conn.Close()
		return err
	}

	reply, err := conn.RequestName(r.BusName(), dbus.NameFlagDoNotQueue)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("requesting bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Close()
		return fmt.Errorf("bus name %s already owned", r.BusName())
	}

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	r.Start(ctx)
	r.logger.Info("mpris remote registered", slog.String("bus_name", r.BusName()))
	return nil
}

func (r *Remote) export(conn *dbus.Conn) error {
	root := &rootMethods{}
	player := &playerMethods{remote: r}

	if err := conn.Export(root, objectPath, rootIface); err != nil {
		return fmt.Errorf("exporting %s: %w", rootIface, err)
	}
	if err := conn.Export(player, objectPath, playerIface); err != nil {
		return fmt.Errorf("exporting %s: %w", playerIface, err)
	}

	props, err := prop.Export(conn, objectPath, map[string]map[string]*prop.Prop{
		rootIface:   r.rootProperties(),
		playerIface: r.playerProperties(),
	})
	if err != nil {
		return fmt.Errorf("exporting properties: %w", err)
	}

	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       rootIface,
				Methods:    introspect.Methods(root),
				Properties: props.Introspection(rootIface),
			},
			{
				Name:       playerIface,
				Methods:    introspect.Methods(player),
				Signals:    []introspect.Signal{{Name: "Seeked", Args: []introspect.Arg{{Name: "Position", Type: "x"}}}},
				Properties: props.Introspection(playerIface),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("exporting introspection: %w", err)
	}

	r.mu.Lock()
	r.props = props
	r.mu.Unlock()
	return nil
}

func (r *Remote) rootProperties() map[string]*prop.Prop {
	return map[string]*prop.Prop{
		"CanQuit":             {Value: false, Emit: prop.EmitFalse},
		"CanRaise":            {Value: false, Emit: prop.EmitFalse},
		"HasTrackList":        {Value: false, Emit: prop.EmitFalse},
		"Identity":            {Value: "skyplayer", Emit: prop.EmitFalse},
		"SupportedUriSchemes": {Value: []string{"http", "https"}, Emit: prop.EmitFalse},
		"SupportedMimeTypes":  {Value: []string{"application/vnd.apple.mpegurl", "application/x-mpegURL"}, Emit: prop.EmitFalse},
	}
}

func (r *Remote) playerProperties() map[string]*prop.Prop {
	return map[string]*prop.Prop{
		"PlaybackStatus": {Value: StatusStopped, Emit: prop.EmitTrue},
		"Metadata":       {Value: metadata("", engine.TimeUnset), Emit: prop.EmitTrue},
		"Position":       {Value: int64(0), Emit: prop.EmitFalse},
		"Rate":           {Value: 1.0, Emit: prop.EmitFalse},
		"MinimumRate":    {Value: 1.0, Emit: prop.EmitFalse},
		"MaximumRate":    {Value: 1.0, Emit: prop.EmitFalse},
		"Volume":         {Value: 1.0, Emit: prop.EmitFalse},
		"CanControl":     {Value: true, Emit: prop.EmitFalse},
		"CanPlay":        {Value: true, Emit: prop.EmitFalse},
		"CanPause":       {Value: true, Emit: prop.EmitFalse},
		"CanSeek":        {Value: true, Emit: prop.EmitFalse},
		"CanGoNext":      {Value: false, Emit: prop.EmitFalse},
		"CanGoPrevious":  {Value: false, Emit: prop.EmitFalse},
	}
}

// Start mirrors published snapshots into properties until ctx is cancelled
// or Close is called.
func (r *Remote) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	sub := r.states.Subscribe()

	r.mu.Lock()
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		defer r.states.Unsubscribe(sub.ID)
		for {
			select {
			case <-ctx.Done():
				return
			case state := <-sub.Events:
				r.apply(state)
			}
		}
	}()
}

// Close stops mirroring and releases the bus connection.
func (r *Remote) Close() error {
	r.mu.Lock()
	cancel, done, conn := r.cancel, r.done, r.conn
	r.cancel, r.conn = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if conn == nil {
		return nil
	}
	if _, err := conn.ReleaseName(r.BusName()); err != nil {
		r.logger.Debug("releasing bus name failed", slog.String("error", err.Error()))
	}
	return conn.Close()
}

// apply copies one snapshot into the MPRIS properties.
func (r *Remote) apply(state models.PlaybackState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := StatusPaused
	switch {
	case r.stopped:
		status = StatusStopped
	case state.IsPlaying:
		status = StatusPlaying
	}
	r.setStatusLocked(status)

	if r.props != nil {
		r.props.SetMust(playerIface, "Position", micros(state.Position))
		r.props.SetMust(playerIface, "Metadata", metadata(r.url, state.Duration))
	}
}

func (r *Remote) setStatusLocked(status string) {
	if r.status == status {
		return
	}
	r.status = status
	if r.props != nil {
		r.props.SetMust(playerIface, "PlaybackStatus", status)
	}
}

// Status returns the current MPRIS playback status.
func (r *Remote) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// run dispatches a command, logging failures.
func (r *Remote) run(method string, args transport.Args) bool {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if _, err := r.dispatcher.Dispatch(ctx, method, args); err != nil {
		attrs := []any{slog.String("method", method), slog.String("error", err.Error())}
		if ce, ok := transport.AsCommandError(err); ok {
			attrs = append(attrs, slog.String("code", ce.Code))
		}
		r.logger.Warn("mpris command failed", attrs...)
		return false
	}
	return true
}

func (r *Remote) play() {
	r.run(transport.MethodPlay, nil)
}

func (r *Remote) pause() {
	r.run(transport.MethodPause, nil)
}

func (r *Remote) playPause() {
	state, ok := r.states.Latest()
	if ok && state.IsPlaying && !r.isStopped() {
		r.pause()
		return
	}
	r.play()
}

func (r *Remote) stop() {
	if !r.run(transport.MethodReleasePlayer, nil) {
		return
	}
	r.mu.Lock()
	r.stopped = true
	r.url = ""
	r.setStatusLocked(StatusStopped)
	if r.props != nil {
		r.props.SetMust(playerIface, "Position", int64(0))
		r.props.SetMust(playerIface, "Metadata", metadata("", engine.TimeUnset))
	}
	r.mu.Unlock()
}

// seek moves by offset microseconds relative to the current position,
// clamped to the known duration.
func (r *Remote) seek(offset int64) {
	state, ok := r.states.Latest()
	if !ok || r.isStopped() {
		return
	}
	target := max(micros(state.Position)+offset, 0)
	if state.Duration != engine.TimeUnset && state.Duration > 0 {
		target = min(target, micros(state.Duration))
	}
	r.seekTo(target)
}

// setPosition jumps to an absolute position. Calls for another track or
// outside the known duration are ignored.
func (r *Remote) setPosition(track dbus.ObjectPath, position int64) {
	if track != currentTrack || position < 0 || r.isStopped() {
		return
	}
	if state, ok := r.states.Latest(); ok && state.Duration != engine.TimeUnset && position > micros(state.Duration) {
		return
	}
	r.seekTo(position)
}

func (r *Remote) seekTo(position int64) {
	if !r.run(transport.MethodSeekTo, transport.Args{"position": position / 1000}) {
		return
	}

	r.mu.Lock()
	conn, props := r.conn, r.props
	r.mu.Unlock()

	if props != nil {
		props.SetMust(playerIface, "Position", position)
	}
	if conn != nil {
		if err := conn.Emit(objectPath, playerIface+".Seeked", position); err != nil {
			r.logger.Debug("emitting Seeked failed", slog.String("error", err.Error()))
		}
	}
}

func (r *Remote) openURI(uri string) {
	if !r.run(transport.MethodInitPlayerWithNetwork, transport.Args{"url": uri}) {
		return
	}
	r.mu.Lock()
	r.stopped = false
	r.url = uri
	r.mu.Unlock()
}

func (r *Remote) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func micros(d time.Duration) int64 {
	if d == engine.TimeUnset || d < 0 {
		return 0
	}
	return d.Microseconds()
}

func metadata(url string, duration time.Duration) map[string]dbus.Variant {
	if url == "" {
		return map[string]dbus.Variant{"mpris:trackid": dbus.MakeVariant(noTrack)}
	}
	md := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(currentTrack),
		"xesam:url":     dbus.MakeVariant(url),
		"xesam:title":   dbus.MakeVariant(url),
	}
	if duration != engine.TimeUnset && duration > 0 {
		md["mpris:length"] = dbus.MakeVariant(micros(duration))
	}
	return md
}

// rootMethods implements org.mpris.MediaPlayer2.
type rootMethods struct{}

func (rootMethods) Raise() *dbus.Error { return nil }
func (rootMethods) Quit() *dbus.Error  { return nil }

// playerMethods implements org.mpris.MediaPlayer2.Player. Failures are
// logged by the remote and never returned to the caller.
type playerMethods struct {
	remote *Remote
}

func (m *playerMethods) Next() *dbus.Error     { return nil }
func (m *playerMethods) Previous() *dbus.Error { return nil }

func (m *playerMethods) Play() *dbus.Error {
	m.remote.play()
	return nil
}

func (m *playerMethods) Pause() *dbus.Error {
	m.remote.pause()
	return nil
}

func (m *playerMethods) PlayPause() *dbus.Error {
	m.remote.playPause()
	return nil
}

func (m *playerMethods) Stop() *dbus.Error {
	m.remote.stop()
	return nil
}

func (m *playerMethods) Seek(offset int64) *dbus.Error {
	m.remote.seek(offset)
	return nil
}

func (m *playerMethods) SetPosition(track dbus.ObjectPath, position int64) *dbus.Error {
	m.remote.setPosition(track, position)
	return nil
}

func (m *playerMethods) OpenUri(uri string) *dbus.Error { //nolint:revive // MPRIS method name
	m.remote.openURI(uri)
	return nil
}
