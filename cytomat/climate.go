package cytomat

import (
	"context"

	"github.com/moffa90/go-cytomat/protocol"
)

// Reading is a climate measurement with its setpoint.
type Reading struct {
	Actual   float64
	Setpoint float64
	Warnings protocol.WarningStatus
}

// Climate reads and sets incubation conditions.
type Climate struct {
	inv Invoker
}

// NewClimate creates a climate controller.
func NewClimate(inv Invoker) *Climate {
	return &Climate{inv: inv}
}

// Temperature reads the chamber temperature in °C.
func (c *Climate) Temperature(ctx context.Context) (Reading, error) {
	return c.read(ctx, protocol.CmdReadTemperature)
}

// SetTemperature sets the temperature setpoint in °C (0..50).
func (c *Climate) SetTemperature(ctx context.Context, celsius float64) (ActionResult, error) {
	return invokeAction(ctx, c.inv, protocol.CmdSetTemperature, celsius)
}

// CO2 reads the CO2 concentration in percent.
func (c *Climate) CO2(ctx context.Context) (Reading, error) {
	return c.read(ctx, protocol.CmdReadCO2)
}

// SetCO2 sets the CO2 setpoint in percent (0..20).
func (c *Climate) SetCO2(ctx context.Context, percent float64) (ActionResult, error) {
	return invokeAction(ctx, c.inv, protocol.CmdSetCO2, percent)
}

// Humidity reads the relative humidity in percent.
func (c *Climate) Humidity(ctx context.Context) (Reading, error) {
	return c.read(ctx, protocol.CmdReadHumidity)
}

// SetHumidity sets the relative humidity setpoint in percent.
func (c *Climate) SetHumidity(ctx context.Context, percent float64) (ActionResult, error) {
	return invokeAction(ctx, c.inv, protocol.CmdSetHumidity, percent)
}

// N2 reads the N2 concentration in percent.
func (c *Climate) N2(ctx context.Context) (Reading, error) {
	return c.read(ctx, protocol.CmdReadN2)
}

// SetN2 sets the N2 setpoint in percent.
func (c *Climate) SetN2(ctx context.Context, percent float64) (ActionResult, error) {
	return invokeAction(ctx, c.inv, protocol.CmdSetN2, percent)
}

func (c *Climate) read(ctx context.Context, name string) (Reading, error) {
	actual, resp, err := invokeValue[float64](ctx, c.inv, name)
	if err != nil {
		return Reading{}, err
	}
	setpoint, err := protocol.Value[float64](resp, 1)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Actual: actual, Setpoint: setpoint, Warnings: resp.Warnings}, nil
}
