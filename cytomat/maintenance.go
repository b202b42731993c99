package cytomat

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-cytomat/protocol"
)

// ActionReport describes the action the device is performing or last performed.
type ActionReport struct {
	Status protocol.ActionStatus
	Target protocol.ActionTarget
	Type   protocol.ActionType
}

// Maintenance queries device status registers and runs housekeeping commands.
type Maintenance struct {
	inv Invoker
}

// NewMaintenance creates a maintenance controller.
func NewMaintenance(inv Invoker) *Maintenance {
	return &Maintenance{inv: inv}
}

// Overview reads the overview status register.
func (m *Maintenance) Overview(ctx context.Context) (protocol.OverviewStatus, error) {
	status, _, err := invokeValue[protocol.OverviewStatus](ctx, m.inv, protocol.CmdOverviewStatus)
	return status, err
}

// ActionStatus reads the current action register with its target and type.
func (m *Maintenance) ActionStatus(ctx context.Context) (ActionReport, error) {
	resp, err := m.inv.Invoke(ctx, protocol.CmdActionStatus)
	if err != nil {
		return ActionReport{}, err
	}

	var report ActionReport
	if report.Status, err = protocol.Value[protocol.ActionStatus](resp, 0); err != nil {
		return ActionReport{}, err
	}
	if report.Target, err = protocol.Value[protocol.ActionTarget](resp, 1); err != nil {
		return ActionReport{}, err
	}
	if report.Type, err = protocol.Value[protocol.ActionType](resp, 2); err != nil {
		return ActionReport{}, err
	}
	return report, nil
}

// Warnings reads the warning register.
func (m *Maintenance) Warnings(ctx context.Context) (protocol.WarningStatus, error) {
	resp, err := m.inv.Invoke(ctx, protocol.CmdWarningStatus)
	if err != nil {
		return 0, err
	}
	return resp.Warnings, nil
}

// Errors reads the error register. A set register is returned as data,
// not as an error.
func (m *Maintenance) Errors(ctx context.Context) (protocol.ErrorStatus, error) {
	resp, err := m.inv.Invoke(ctx, protocol.CmdErrorStatus)
	if err != nil {
		return 0, err
	}
	return resp.Errors, nil
}

// ClearErrors clears the error register.
func (m *Maintenance) ClearErrors(ctx context.Context) (ActionResult, error) {
	return invokeAction(ctx, m.inv, protocol.CmdClearErrors)
}

// Initialize runs the initialization sequence of a subsystem.
func (m *Maintenance) Initialize(ctx context.Context, target protocol.ActionTarget) (ActionResult, error) {
	return invokeAction(ctx, m.inv, protocol.CmdInitialize, target)
}

// Reset performs a soft reset.
func (m *Maintenance) Reset(ctx context.Context) (ActionResult, error) {
	return invokeAction(ctx, m.inv, protocol.CmdReset)
}

// FirmwareVersion reads the firmware version string.
func (m *Maintenance) FirmwareVersion(ctx context.Context) (string, error) {
	v, _, err := invokeValue[string](ctx, m.inv, protocol.CmdFirmwareVersion)
	return v, err
}

// SerialNumber reads the device serial number.
func (m *Maintenance) SerialNumber(ctx context.Context) (string, error) {
	v, _, err := invokeValue[string](ctx, m.inv, protocol.CmdSerialNumber)
	return v, err
}

// WaitUntilIdle polls the overview register every interval until the busy
// flag clears. It fails when the register reports a pending error or ctx
// is done. The interval must be positive.
func (m *Maintenance) WaitUntilIdle(ctx context.Context, interval time.Duration) (protocol.OverviewStatus, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("wait until idle: interval must be > 0, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := m.Overview(ctx)
		if err != nil {
			return status, err
		}
		if status.Has(protocol.OverviewErrorPending) {
			return status, fmt.Errorf("wait until idle: device reports pending error (%s)", status)
		}
		if !status.Has(protocol.OverviewBusy) {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, fmt.Errorf("wait until idle: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
