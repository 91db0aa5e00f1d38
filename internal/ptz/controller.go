package ptz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"drip/internal/config"
	"drip/internal/logging"
	"drip/internal/services"
	"drip/internal/status"
)

// State is a snapshot of the lens and filter settings last acknowledged by a
// successful write.
type State struct {
	Connected    bool    `json:"connected"`
	Port         string  `json:"port,omitempty"`
	ZoomLevel    int     `json:"zoom_level"`
	Multiplier   float64 `json:"zoom_multiplier"`
	ICR          bool    `json:"icr_enabled"`
	IRCorrection bool    `json:"ir_correction_enabled"`
}

// Option configures the controller.
type Option func(*Controller)

// WithOpener injects a port opener (primarily for tests).
func WithOpener(open Opener) Option {
	return func(c *Controller) {
		if open != nil {
			c.open = open
		}
	}
}

// WithStatusBoard routes operator messages to board.
func WithStatusBoard(board *status.Board) Option {
	return func(c *Controller) {
		c.board = board
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logging.NewComponentLogger(logger, "ptz")
	}
}

// Controller owns the serial connection to the camera head.
type Controller struct {
	mu sync.Mutex

	paths        []string
	baud         int
	step         int
	readReplies  bool
	replyTimeout time.Duration
	open         Opener

	port     Port
	portPath string

	level        int
	icr          bool
	irCorrection bool

	board  *status.Board
	logger *slog.Logger
}

// New constructs a controller from configuration. No port is opened until the
// first command.
func New(cfg *config.Config, opts ...Option) *Controller {
	c := &Controller{
		paths:  append([]string(nil), config.DefaultSerialPorts...),
		baud:   9600,
		step:   512,
		open:   openSerial,
		logger: logging.NewNop(),
	}
	if cfg != nil {
		c.paths = append([]string(nil), cfg.SerialPorts...)
		c.baud = cfg.SerialBaud
		c.step = cfg.ZoomStep
		c.readReplies = cfg.SerialReadReplies
		c.replyTimeout = cfg.SerialReplyTimeout()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureConnected opens the first candidate port that accepts the configured
// baud rate, flushes stale input and sends the initialization frame. An
// already open port is reused.
func (c *Controller) EnsureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.ensureConnectedLocked(ctx)
	c.report(err, "")
	return err
}

func (c *Controller) ensureConnectedLocked(ctx context.Context) error {
	if c.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, path := range c.paths {
		port, err := c.open(path, c.baud)
		if err != nil {
			c.logger.Debug("serial candidate unavailable", logging.String("port", path), logging.Error(err))
			continue
		}
		if err := port.ResetInputBuffer(); err != nil {
			c.logger.Debug("serial input flush failed", logging.String("port", path), logging.Error(err))
		}
		if _, err := port.Write(InitFrame()); err != nil {
			_ = port.Close()
			c.logger.Debug("serial init frame failed", logging.String("port", path), logging.Error(err))
			continue
		}
		c.port = port
		c.portPath = path
		c.logger.Info("serial device connected",
			logging.String("port", path),
			logging.Int("baud", c.baud),
			logging.String(logging.FieldEventType, "serial_connected"),
		)
		return nil
	}
	return services.Wrap(services.ErrNoDeviceFound, "ptz", "connect", fmt.Sprintf("tried %d candidates", len(c.paths)), nil)
}

// send writes one frame, connecting first when needed. A write failure drops
// the handle so the next command reconnects.
func (c *Controller) send(ctx context.Context, op string, frame []byte) error {
	if err := c.ensureConnectedLocked(ctx); err != nil {
		return err
	}
	if _, err := c.port.Write(frame); err != nil {
		c.dropLocked()
		return services.Wrap(services.ErrDeviceWrite, "ptz", op, "", err)
	}
	if !c.readReplies {
		return nil
	}
	replies, err := readReplies(c.port, c.replyTimeout)
	if err != nil {
		c.dropLocked()
		return services.Wrap(services.ErrDeviceWrite, "ptz", op, "read reply", err)
	}
	if len(replies) > 0 {
		return services.Wrap(services.ErrDeviceReply, "ptz", op, describeReply(replies[0]), nil)
	}
	return nil
}

func (c *Controller) dropLocked() {
	if c.port == nil {
		return
	}
	if err := c.port.Close(); err != nil {
		c.logger.Debug("serial close failed", logging.String("port", c.portPath), logging.Error(err))
	}
	c.port = nil
	c.portPath = ""
}

// report pushes the outcome of a command to the status board.
func (c *Controller) report(err error, success string) {
	if err != nil {
		logging.WarnWithContext(c.logger, "camera command failed", "serial_command_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the serial cable and serial_ports setting"),
			logging.String(logging.FieldImpact, "lens settings unchanged"),
		)
		c.board.Set(services.StatusText(err))
		return
	}
	if success != "" {
		c.board.Set(success)
	}
}

// SetZoom moves the lens to level after clamping it to [0, MaxZoomLevel].
func (c *Controller) SetZoom(ctx context.Context, level int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setZoomLocked(ctx, level)
}

func (c *Controller) setZoomLocked(ctx context.Context, level int) error {
	level = ClampLevel(level)
	err := c.send(ctx, "zoom", ZoomFrame(level))
	if err == nil {
		c.level = level
		c.logger.Debug("zoom set", logging.Int("level", level))
	}
	c.report(err, status.Zoom(Multiplier(c.level)))
	return err
}

// ZoomIn advances one step when the lens is not already at MaxZoomLevel.
func (c *Controller) ZoomIn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.level >= MaxZoomLevel {
		return nil
	}
	return c.setZoomLocked(ctx, c.level+c.step)
}

// ZoomOut retreats one step when the lens is not already at zero.
func (c *Controller) ZoomOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.level <= 0 {
		return nil
	}
	return c.setZoomLocked(ctx, c.level-c.step)
}

// SetICR switches the IR-cut filter.
func (c *Controller) SetICR(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.send(ctx, "icr", ICRFrame(enabled))
	if err == nil {
		c.icr = enabled
	}
	c.report(err, status.ICR(enabled))
	return err
}

// SetIRCorrection switches IR focus correction.
func (c *Controller) SetIRCorrection(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.send(ctx, "ir_correction", IRCorrectionFrame(enabled))
	if err == nil {
		c.irCorrection = enabled
	}
	c.report(err, status.IRCorrection(enabled))
	return err
}

// State returns the controller's current view of the head.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Connected:    c.port != nil,
		Port:         c.portPath,
		ZoomLevel:    c.level,
		Multiplier:   LevelToMultiplier(c.level),
		ICR:          c.icr,
		IRCorrection: c.irCorrection,
	}
}

// Disconnect closes the handle, if any. The next command reconnects.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port != nil {
		c.logger.Info("serial device disconnected",
			logging.String("port", c.portPath),
			logging.String(logging.FieldEventType, "serial_disconnected"),
		)
	}
	c.dropLocked()
}

// Close releases the serial handle at shutdown.
func (c *Controller) Close() error {
	c.Disconnect()
	return nil
}
