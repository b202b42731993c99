package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-cytomat/cytomat"
	"github.com/moffa90/go-cytomat/cytomattest"
	"github.com/moffa90/go-cytomat/protocol"
	"github.com/moffa90/go-cytomat/serial"
)

// useDevice routes the command to a simulated device for one test.
func useDevice(t *testing.T, dev *cytomattest.Device) {
	t.Helper()
	orig := openTransport
	openTransport = func(serial.Config) (cytomat.Transport, error) { return dev, nil }
	t.Cleanup(func() { openTransport = orig })
}

func runCLI(ctx context.Context, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(ctx, append([]string{"-log-level", "panic"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionAndUsage(t *testing.T) {
	code, out, _ := runCLI(context.Background(), "-version")
	require.Equal(t, 0, code)
	require.Contains(t, out, "cytomat dev")

	code, _, errOut := runCLI(context.Background())
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "Usage: cytomat")
}

func TestCommandsListing(t *testing.T) {
	code, out, _ := runCLI(context.Background(), "commands")
	require.Equal(t, 0, code)
	require.Contains(t, out, "NAME")
	for _, sig := range protocol.Signatures() {
		require.Contains(t, out, sig.Name+" ")
	}
}

func TestStatus(t *testing.T) {
	dev := cytomattest.NewDevice()
	dev.SetWarnings(protocol.WarningWaterLow)
	useDevice(t, dev)

	code, out, _ := runCLI(context.Background(), "status")
	require.Equal(t, 0, code)
	require.Contains(t, out, "water_low")
	require.Contains(t, out, "temperature:")
	require.Contains(t, out, "(setpoint 37)")
	require.Equal(t, []string{"bs", "ba", "bw", "be", "rt", "rc", "rh", "rn"}, dev.Received())
}

func TestStatusReportsClimateFaults(t *testing.T) {
	dev := cytomattest.NewDevice()
	dev.InjectFault(protocol.CmdReadHumidity, protocol.ErrorClimate)
	useDevice(t, dev)

	code, out, _ := runCLI(context.Background(), "status")
	require.Equal(t, 0, code)
	require.Contains(t, out, "climate_fault")
}

func TestRaw(t *testing.T) {
	dev := cytomattest.NewDevice()
	dev.PutPlate(5, "P5")
	useDevice(t, dev)

	code, out, _ := runCLI(context.Background(), "raw", "gp", "5")
	require.Equal(t, 0, code)
	require.Contains(t, out, "bool:")
	require.Contains(t, out, "true")

	code, _, _ = runCLI(context.Background(), "raw", "gp", "abc")
	require.Equal(t, 1, code)

	code, _, _ = runCLI(context.Background(), "raw", "zz")
	require.Equal(t, 1, code)
}

func TestRawPrintsFaults(t *testing.T) {
	dev := cytomattest.NewDevice()
	dev.InjectFault(protocol.CmdOpenGate, protocol.ErrorGate|protocol.ErrorMotor)
	useDevice(t, dev)

	code, out, _ := runCLI(context.Background(), "raw", "go")
	require.Equal(t, 1, code)
	require.Contains(t, out, "fault: motor_fault")
	require.Contains(t, out, "fault: gate_fault")
}

func TestWatchStopsOnCancel(t *testing.T) {
	dev := cytomattest.NewDevice()
	useDevice(t, dev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, _, _ := runCLI(ctx, "watch", "-interval", "1ms")
	require.Equal(t, 0, code)
	require.Empty(t, dev.Received())
}

func TestUnknownSubcommandAndOpenFailure(t *testing.T) {
	dev := cytomattest.NewDevice()
	useDevice(t, dev)

	code, _, errOut := runCLI(context.Background(), "dance")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, `unknown subcommand "dance"`)

	openTransport = func(serial.Config) (cytomat.Transport, error) { return nil, errors.New("no such device") }
	code, _, _ = runCLI(context.Background(), "status")
	require.Equal(t, 1, code)
}
