package cytomat

import (
	"context"

	"github.com/moffa90/go-cytomat/protocol"
)

// Invoker sends one command and returns its decoded response.
// *Engine implements it; sub-controllers depend only on this capability.
type Invoker interface {
	Invoke(ctx context.Context, name string, args ...any) (*protocol.Response, error)
}

// ActionResult is the reply to a command that starts an action: the
// overview register after the command was accepted plus any warnings.
type ActionResult struct {
	Status   protocol.OverviewStatus
	Warnings protocol.WarningStatus
}

// invokeAction sends a command with the action reply shape.
func invokeAction(ctx context.Context, inv Invoker, name string, args ...any) (ActionResult, error) {
	resp, err := inv.Invoke(ctx, name, args...)
	if err != nil {
		return ActionResult{}, err
	}
	status, err := protocol.Value[protocol.OverviewStatus](resp, 0)
	if err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Status: status, Warnings: resp.Warnings}, nil
}

// invokeValue sends a command and returns its first payload value.
func invokeValue[T any](ctx context.Context, inv Invoker, name string, args ...any) (T, *protocol.Response, error) {
	var zero T
	resp, err := inv.Invoke(ctx, name, args...)
	if err != nil {
		return zero, nil, err
	}
	v, err := protocol.Value[T](resp, 0)
	if err != nil {
		return zero, nil, err
	}
	return v, resp, nil
}
