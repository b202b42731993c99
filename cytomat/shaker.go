package cytomat

import (
	"context"

	"github.com/moffa90/go-cytomat/protocol"
)

// Frequency is a shaker frequency reading in rpm.
type Frequency struct {
	RPM      int
	Warnings protocol.WarningStatus
}

// Shaker controls the plate shakers.
type Shaker struct {
	inv Invoker
}

// NewShaker creates a shaker controller.
func NewShaker(inv Invoker) *Shaker {
	return &Shaker{inv: inv}
}

// Start starts all shakers at their configured frequencies.
func (s *Shaker) Start(ctx context.Context) (ActionResult, error) {
	return invokeAction(ctx, s.inv, protocol.CmdStartShaker)
}

// Stop stops all shakers.
func (s *Shaker) Stop(ctx context.Context) (ActionResult, error) {
	return invokeAction(ctx, s.inv, protocol.CmdStopShaker)
}

// SetFrequency sets the frequency of shaker 1 or 2 in rpm (0..2000).
func (s *Shaker) SetFrequency(ctx context.Context, shaker, rpm int) (ActionResult, error) {
	return invokeAction(ctx, s.inv, protocol.CmdSetShakerFreq, shaker, rpm)
}

// Frequency reads the configured frequency of shaker 1 or 2.
func (s *Shaker) Frequency(ctx context.Context, shaker int) (Frequency, error) {
	rpm, resp, err := invokeValue[int](ctx, s.inv, protocol.CmdReadShakerFreq, shaker)
	if err != nil {
		return Frequency{}, err
	}
	return Frequency{RPM: rpm, Warnings: resp.Warnings}, nil
}
