package cytomat

import (
	"context"

	"github.com/moffa90/go-cytomat/protocol"
)

// PlateHandler moves plates between storage slots, the transfer station
// and the wait position, and drives the automatic gate.
type PlateHandler struct {
	inv Invoker
}

// NewPlateHandler creates a plate handler controller.
func NewPlateHandler(inv Invoker) *PlateHandler {
	return &PlateHandler{inv: inv}
}

// TransferToStorage moves the plate on the transfer station into slot.
func (p *PlateHandler) TransferToStorage(ctx context.Context, slot int) (ActionResult, error) {
	return invokeAction(ctx, p.inv, protocol.CmdTransferToStorage, slot)
}

// StorageToTransfer moves the plate in slot onto the transfer station.
func (p *PlateHandler) StorageToTransfer(ctx context.Context, slot int) (ActionResult, error) {
	return invokeAction(ctx, p.inv, protocol.CmdStorageToTransfer, slot)
}

// StorageToWait moves the plate in slot to the wait position.
func (p *PlateHandler) StorageToWait(ctx context.Context, slot int) (ActionResult, error) {
	return invokeAction(ctx, p.inv, protocol.CmdStorageToWait, slot)
}

// WaitToStorage moves the plate at the wait position into slot.
func (p *PlateHandler) WaitToStorage(ctx context.Context, slot int) (ActionResult, error) {
	return invokeAction(ctx, p.inv, protocol.CmdWaitToStorage, slot)
}

// TransferToWait moves the plate on the transfer station to the wait position.
func (p *PlateHandler) TransferToWait(ctx context.Context) (ActionResult, error) {
	return invokeAction(ctx, p.inv, protocol.CmdTransferToWait)
}

// WaitToTransfer moves the plate at the wait position onto the transfer station.
func (p *PlateHandler) WaitToTransfer(ctx context.Context) (ActionResult, error) {
	return invokeAction(ctx, p.inv, protocol.CmdWaitToTransfer)
}

// MoveToSlot moves the empty handler in front of slot.
func (p *PlateHandler) MoveToSlot(ctx context.Context, slot int) (ActionResult, error) {
	return invokeAction(ctx, p.inv, protocol.CmdMoveHandler, slot)
}

// PlatePresent reports whether slot holds a plate.
func (p *PlateHandler) PlatePresent(ctx context.Context, slot int) (bool, error) {
	present, _, err := invokeValue[bool](ctx, p.inv, protocol.CmdPlatePresent, slot)
	return present, err
}

// OpenGate opens the automatic gate.
func (p *PlateHandler) OpenGate(ctx context.Context) (ActionResult, error) {
	return invokeAction(ctx, p.inv, protocol.CmdOpenGate)
}

// CloseGate closes the automatic gate.
func (p *PlateHandler) CloseGate(ctx context.Context) (ActionResult, error) {
	return invokeAction(ctx, p.inv, protocol.CmdCloseGate)
}
