package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/iot-core/internal/history"
)

// Logger defines the logging interface used by the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Request asks for action to be performed on a device.
type Request struct {
	DeviceID string `json:"device_id"`
	Action   string `json:"action"`
	IssuedBy string `json:"issued_by,omitempty"`
}

// Controller validates device commands, sends them through a Transport and
// records every outcome in the command log.
type Controller struct {
	catalog   *Catalog
	log       *history.Log
	transport Transport
	timeout   time.Duration
	logger    Logger
	now       func() time.Time

	onRecorded   []func(history.Entry)
	onRecordedMu sync.RWMutex
}

// NewController creates a controller. timeout bounds how long Dispatch
// waits for the transport before recording the command as pending.
func NewController(catalog *Catalog, log *history.Log, transport Transport, timeout time.Duration) *Controller {
	return &Controller{
		catalog:   catalog,
		log:       log,
		transport: transport,
		timeout:   timeout,
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger sets the logger for dispatch outcomes.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// OnRecorded registers fn to run after each outcome is recorded.
func (c *Controller) OnRecorded(fn func(history.Entry)) {
	c.onRecordedMu.Lock()
	c.onRecorded = append(c.onRecorded, fn)
	c.onRecordedMu.Unlock()
}

// Catalog returns the device catalog.
func (c *Controller) Catalog() *Catalog {
	return c.catalog
}

// Dispatch sends one command and records its outcome.
//
// The returned HistoryAction is always recorded when err is nil or wraps
// ErrDeviceTransportFailure. A command the device did not confirm before
// the deadline is recorded as pending and returns a nil error.
func (c *Controller) Dispatch(ctx context.Context, req Request) (history.HistoryAction, error) {
	action, err := c.catalog.Validate(req.DeviceID, req.Action)
	if err != nil {
		return history.HistoryAction{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return history.HistoryAction{}, fmt.Errorf("generating command id: %w", err)
	}

	cmd := history.DeviceCommand{
		ID:       id.String(),
		DeviceID: strings.TrimSpace(req.DeviceID),
		Action:   action,
		IssuedAt: c.now(),
		IssuedBy: req.IssuedBy,
	}
	if _, err := c.log.Append(ctx, cmd, nil); err != nil {
		return history.HistoryAction{}, fmt.Errorf("logging command: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	sendErr := c.transport.Send(sendCtx, cmd)
	cancel()

	outcome := history.HistoryAction{
		CommandID:   cmd.ID,
		Result:      history.ResultSuccess,
		CompletedAt: c.now(),
	}
	switch {
	case sendErr == nil:
	case isPending(sendErr):
		outcome.Result = history.ResultPending
		outcome.Detail = c.pendingDetail(ctx, sendErr)
	default:
		outcome.Result = history.ResultFailure
		outcome.Detail = sendErr.Error()
	}

	// The caller may have gone away; the outcome is still recorded.
	entry, err := c.log.Record(context.WithoutCancel(ctx), outcome)
	if err != nil {
		return history.HistoryAction{}, fmt.Errorf("recording outcome: %w", err)
	}

	c.logger.Info("device command dispatched",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"action", cmd.Action,
		"result", outcome.Result,
	)
	c.notify(entry)

	if outcome.Result == history.ResultFailure {
		return outcome, fmt.Errorf("%w: %w", ErrDeviceTransportFailure, sendErr)
	}
	return outcome, nil
}

// pendingDetail tells a dispatch deadline apart from the caller going away.
func (c *Controller) pendingDetail(ctx context.Context, sendErr error) string {
	if errors.Is(sendErr, context.Canceled) || ctx.Err() != nil {
		cause := context.Cause(ctx)
		if cause == nil {
			cause = sendErr
		}
		return fmt.Sprintf("cancelled by caller before acknowledgement: %v", cause)
	}
	return fmt.Sprintf("no acknowledgement within %s", c.timeout)
}

func isPending(err error) bool {
	return errors.Is(err, ErrAckTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func (c *Controller) notify(e history.Entry) {
	c.onRecordedMu.RLock()
	fns := c.onRecorded
	c.onRecordedMu.RUnlock()
	for _, fn := range fns {
		fn(e)
	}
}
