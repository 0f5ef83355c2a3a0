package transport

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/samber/mo"

	"github.com/jmylchreest/skyplayer/internal/models"
	"github.com/jmylchreest/skyplayer/internal/observability"
	"github.com/jmylchreest/skyplayer/internal/player"
)

// Command names.
const (
	MethodInitPlayerWithNetwork = "initPlayerWithNetwork"
	MethodReleasePlayer         = "releasePlayer"
	MethodPlay                  = "play"
	MethodPause                 = "pause"
	MethodSeekTo                = "seekTo"
	MethodSetResolution         = "setResolution"
	MethodSetAudioTrack         = "setAudioTrack"
	MethodSetSubtitleTrack      = "setSubtitleTrack"
	MethodCreateTexture         = "createTexture"
	MethodSetSurfaceSize        = "setSurfaceSize"
	MethodReleaseSurface        = "releaseSurface"
	MethodInitLogger            = "initLogger"
)

// maxPositionMs is the largest seek position that fits a time.Duration.
const maxPositionMs = math.MaxInt64 / int64(time.Millisecond)

// Methods lists every command the dispatcher understands.
var Methods = []string{
	MethodInitPlayerWithNetwork,
	MethodReleasePlayer,
	MethodPlay,
	MethodPause,
	MethodSeekTo,
	MethodSetResolution,
	MethodSetAudioTrack,
	MethodSetSubtitleTrack,
	MethodCreateTexture,
	MethodSetSurfaceSize,
	MethodReleaseSurface,
	MethodInitLogger,
}

// LogSettings are the initLogger arguments.
type LogSettings struct {
	Debug             bool
	EnableFileLogging bool
	LogFilePath       string
}

// LoggerConfigurer applies LogSettings to the process loggers.
type LoggerConfigurer func(LogSettings) error

// Dispatcher validates command arguments and routes commands to the host.
type Dispatcher struct {
	host      *Host
	configure LoggerConfigurer
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher for host.
func NewDispatcher(host *Host) *Dispatcher {
	return &Dispatcher{host: host, logger: slog.Default()}
}

// WithLogger sets the logger.
func (d *Dispatcher) WithLogger(logger *slog.Logger) *Dispatcher {
	d.logger = observability.WithComponent(logger, "dispatcher")
	return d
}

// WithLoggerConfigurer sets the initLogger handler. Without one, initLogger
// is accepted and ignored.
func (d *Dispatcher) WithLoggerConfigurer(fn LoggerConfigurer) *Dispatcher {
	d.configure = fn
	return d
}

// Dispatch runs method with args. Failures are *CommandError. Commands that
// need a player are no-ops returning nil when none exists, except
// createTexture.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, args Args) (any, error) {
	d.logger.Debug("dispatching command", slog.String("method", method))

	switch method {
	case MethodInitPlayerWithNetwork:
		return nil, d.initPlayer(ctx, args)

	case MethodReleasePlayer:
		d.host.Release()
		return nil, nil

	case MethodPlay:
		return nil, d.withPlayer(func(p *player.Orchestrator) error { return p.Play(ctx) })

	case MethodPause:
		return nil, d.withPlayer(func(p *player.Orchestrator) error { return p.Pause(ctx) })

	case MethodSeekTo:
		ms, ok := args.Int64("position")
		if !ok {
			return nil, newCommandError(CodeInvalidPosition, "Position must be provided")
		}
		if ms < 0 || ms > maxPositionMs {
			return nil, newCommandError(CodeInvalidPosition, "Position is out of range")
		}
		return nil, d.withPlayer(func(p *player.Orchestrator) error {
			return p.SeekTo(ctx, time.Duration(ms)*time.Millisecond)
		})

	case MethodSetResolution:
		return d.selectTrack(args, "resolutionId", func(p *player.Orchestrator, id mo.Option[string]) (models.SelectionResult, error) {
			return p.SetResolution(ctx, id)
		})

	case MethodSetAudioTrack:
		return d.selectTrack(args, "trackId", func(p *player.Orchestrator, id mo.Option[string]) (models.SelectionResult, error) {
			return p.SetAudioTrack(ctx, id)
		})

	case MethodSetSubtitleTrack:
		return d.selectTrack(args, "trackId", func(p *player.Orchestrator, id mo.Option[string]) (models.SelectionResult, error) {
			return p.SetSubtitleTrack(ctx, id)
		})

	case MethodCreateTexture:
		return d.createTexture(ctx)

	case MethodSetSurfaceSize:
		w, h := args.IntOr("width", 0), args.IntOr("height", 0)
		return nil, d.withPlayer(func(p *player.Orchestrator) error { return p.SetSurfaceSize(ctx, w, h) })

	case MethodReleaseSurface:
		return nil, d.withPlayer(func(p *player.Orchestrator) error { return p.ReleaseSurface(ctx) })

	case MethodInitLogger:
		return nil, d.initLogger(args)

	default:
		return nil, newCommandError(CodeNotImplemented, method)
	}
}

func (d *Dispatcher) initPlayer(ctx context.Context, args Args) error {
	url, ok := args.String("url")
	if !ok || url == "" {
		return newCommandError(CodeInvalidURL, "URL must be provided")
	}
	if err := d.host.Init(ctx, url); err != nil {
		return playerError(err)
	}
	return nil
}

// withPlayer runs fn on the current player; no player is not an error.
func (d *Dispatcher) withPlayer(fn func(p *player.Orchestrator) error) error {
	err := d.host.With(fn)
	switch {
	case err == nil, errors.Is(err, ErrNoPlayer):
		return nil
	default:
		return playerError(err)
	}
}

func (d *Dispatcher) selectTrack(
	args Args,
	key string,
	fn func(p *player.Orchestrator, id mo.Option[string]) (models.SelectionResult, error),
) (any, error) {
	id, err := args.OptionalString(key)
	if err != nil {
		return nil, &CommandError{Code: CodeInvalidArgument, Message: err.Error(), Err: err}
	}

	var result *models.SelectionResult
	err = d.withPlayer(func(p *player.Orchestrator) error {
		r, err := fn(p, id)
		if err != nil {
			return err
		}
		result = &r
		return nil
	})
	if err != nil || result == nil {
		return nil, err
	}
	return *result, nil
}

func (d *Dispatcher) createTexture(ctx context.Context) (any, error) {
	var (
		id      int64
		created bool
	)
	err := d.host.With(func(p *player.Orchestrator) error {
		var err error
		id, created, err = p.CreateSurfaceForPlayer(ctx)
		return err
	})
	switch {
	case errors.Is(err, ErrNoPlayer):
		return nil, newCommandError(CodeTextureError, "Failed to create texture")
	case err != nil:
		return nil, playerError(err)
	case !created:
		return nil, newCommandError(CodeTextureError, "Failed to create texture")
	}
	return id, nil
}

func (d *Dispatcher) initLogger(args Args) error {
	settings := LogSettings{
		Debug:             args.BoolOr("debug", false),
		EnableFileLogging: args.BoolOr("enableFileLogging", args.BoolOr("fileLogging", false)),
	}
	if path, ok := args.String("logFilePath"); ok {
		settings.LogFilePath = path
	}
	if d.configure == nil {
		return nil
	}
	if err := d.configure(settings); err != nil {
		return &CommandError{Code: CodeInvalidArgument, Message: err.Error(), Err: err}
	}
	return nil
}
