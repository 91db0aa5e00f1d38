// Package storagemon watches udev for removable storage and serial adapters.
package storagemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"drip/internal/logging"
	"drip/internal/notifications"
	"drip/internal/status"
)

// Disconnector drops a cached device handle. *ptz.Controller satisfies it.
type Disconnector interface {
	Disconnect()
}

// Monitor listens for udev netlink events. Block partitions update the
// status line; a vanished tty makes the controller reconnect on next use.
type Monitor struct {
	logger     *slog.Logger
	board      *status.Board
	controller Disconnector
	notifier   notifications.Service

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	done    chan struct{}
	running bool
}

// New builds a monitor. Either collaborator may be nil.
func New(logger *slog.Logger, board *status.Board, controller Disconnector) *Monitor {
	return &Monitor{
		logger:     logging.NewComponentLogger(logger, "storage-monitor"),
		board:      board,
		controller: controller,
	}
}

// SetNotifier publishes storage attach events. Call before Start.
func (m *Monitor) SetNotifier(n notifications.Service) {
	if m != nil {
		m.notifier = n
	}
}

// Start begins listening. Failing to open the netlink socket is logged and
// otherwise ignored.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; storage events unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the appliance may open netlink sockets"),
			logging.String(logging.FieldImpact, "storage attach and detach are not reported"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true
	go m.loop(ctx, conn, m.quit, m.done)

	m.logger.Info("storage monitor started", logging.String(logging.FieldEventType, "netlink_monitor_started"))
	return nil
}

// Stop shuts the monitor down and waits for its loop to exit.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.quit)
	done := m.done
	conn := m.conn
	m.quit, m.done, m.conn = nil, nil, nil
	m.running = false
	m.mu.Unlock()

	<-done
	if conn != nil {
		_ = conn.Close()
	}
	m.logger.Info("storage monitor stopped", logging.String(logging.FieldEventType, "netlink_monitor_stopped"))
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, conn *netlink.UEventConn, quit, done chan struct{}) {
	defer close(done)
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, Matcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.HandleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "storage events may be missed"),
			)
		}
	}
}

// Matcher accepts partition add/remove and tty removal.
func Matcher() netlink.Matcher {
	blockActions := "add|remove"
	ttyActions := "remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &blockActions,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"DEVTYPE":   "partition",
		},
	})
	rules.AddRule(netlink.RuleDefinition{
		Action: &ttyActions,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
		},
	})
	return rules
}

// HandleEvent applies one matched uevent.
func (m *Monitor) HandleEvent(uevent netlink.UEvent) {
	device := deviceName(uevent)
	if device == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	switch uevent.Env["SUBSYSTEM"] {
	case "block":
		m.handleBlock(uevent, device)
	case "tty":
		if uevent.Action != netlink.REMOVE {
			return
		}
		m.logger.Info("serial device removed",
			logging.String(logging.FieldEventType, "serial_removed"),
			logging.String("device", device),
		)
		if m.controller != nil {
			m.controller.Disconnect()
		}
	}
}

func (m *Monitor) handleBlock(uevent netlink.UEvent, device string) {
	switch uevent.Action {
	case netlink.ADD:
		if strings.TrimSpace(uevent.Env["ID_FS_TYPE"]) == "" {
			m.logger.Debug("ignoring partition without filesystem", logging.String("device", device))
			return
		}
		m.logger.Info("storage attached",
			logging.String(logging.FieldEventType, "storage_attached"),
			logging.String("device", device),
			logging.String("fs_type", uevent.Env["ID_FS_TYPE"]),
		)
		m.board.Set(status.StorageAttached(device))
		if m.notifier != nil {
			if err := m.notifier.Publish(context.Background(), notifications.EventStorageAttached, notifications.Payload{"device": device}); err != nil {
				m.logger.Warn("notification failed", logging.Error(err), logging.String(logging.FieldEventType, "notification_failed"))
			}
		}
	case netlink.REMOVE:
		m.logger.Info("storage removed",
			logging.String(logging.FieldEventType, "storage_removed"),
			logging.String("device", device),
		)
		m.board.Set(status.StorageRemoved(device))
	}
}

// deviceName gets the device path from a uevent, falling back to DEVPATH.
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			return "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
