package cytomat

import (
	"context"

	"github.com/moffa90/go-cytomat/protocol"
)

// SwapStation controls the two-sided rotating transfer station.
type SwapStation struct {
	inv Invoker
}

// NewSwapStation creates a swap station controller.
func NewSwapStation(inv Invoker) *SwapStation {
	return &SwapStation{inv: inv}
}

// Status reads the swap station register.
func (s *SwapStation) Status(ctx context.Context) (protocol.SwapStationStatus, error) {
	status, _, err := invokeValue[protocol.SwapStationStatus](ctx, s.inv, protocol.CmdSwapStationStatus)
	return status, err
}

// Rotate turns the swap station to position 1 or 2.
func (s *SwapStation) Rotate(ctx context.Context, position int) (ActionResult, error) {
	return invokeAction(ctx, s.inv, protocol.CmdRotateSwapStation, position)
}

// Home moves the swap station to its reference position.
func (s *SwapStation) Home(ctx context.Context) (ActionResult, error) {
	return invokeAction(ctx, s.inv, protocol.CmdHomeSwapStation)
}
