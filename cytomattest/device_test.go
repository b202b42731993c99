package cytomattest

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-cytomat/protocol"
)

func send(t *testing.T, d *Device, name string, args ...any) {
	t.Helper()
	frame, err := protocol.Encode(name, args...)
	require.NoError(t, err)
	_, err = d.Write(frame)
	require.NoError(t, err)
}

func TestDeviceRepliesInOrderOnVirtualClock(t *testing.T) {
	d := NewDevice()
	d.SetDelay(protocol.CmdTransferToWait, 3*time.Second)
	d.PlaceOnTransfer("P1")

	send(t, d, protocol.CmdTransferToWait)
	send(t, d, protocol.CmdOverviewStatus)

	_, err := d.ReadUntil(protocol.EndOfText, 2*time.Second)
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)
	require.Equal(t, 2*time.Second, d.Elapsed())

	frame, err := d.ReadUntil(protocol.EndOfText, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "\x02tw;48;00;00\x03", string(frame))
	require.Equal(t, 3*time.Second, d.Elapsed())

	// The status reply queues behind the slow move
	frame, err = d.ReadUntil(protocol.EndOfText, time.Second)
	require.NoError(t, err)
	require.Equal(t, "\x02bs;48\x03", string(frame))
}

func TestDeviceRoundsTimeoutUp(t *testing.T) {
	d := NewDevice()
	d.SetDelay(protocol.CmdSerialNumber, 5*time.Second)
	send(t, d, protocol.CmdSerialNumber)

	// Real-time remainders fall a few hundred nanoseconds short
	frame, err := d.ReadUntil(protocol.EndOfText, 5*time.Second-400*time.Nanosecond)
	require.NoError(t, err)
	require.Equal(t, "\x02sn;SIM000001\x03", string(frame))
	require.Equal(t, 5*time.Second, d.Elapsed())

	_, err = d.ReadUntil(protocol.EndOfText, 1500*time.Microsecond)
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)
	require.Equal(t, 5*time.Second+2*time.Millisecond, d.Elapsed())
}

func TestDeviceFlushDropsOnlyArrivedReplies(t *testing.T) {
	d := NewDevice()
	d.SetDelay(protocol.CmdFirmwareVersion, time.Second)

	send(t, d, protocol.CmdSerialNumber)
	send(t, d, protocol.CmdFirmwareVersion)
	require.Equal(t, 2, d.Pending())

	require.NoError(t, d.FlushInput())
	require.Equal(t, 1, d.Pending())

	frame, err := d.ReadUntil(protocol.EndOfText, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "\x02vn;C2-SIM-1.0\x03", string(frame))
}

func TestDeviceSilentCommand(t *testing.T) {
	d := NewDevice()
	d.SetSilent(protocol.CmdReadTemperature, true)

	send(t, d, protocol.CmdReadTemperature)
	require.Equal(t, 0, d.Pending())
	require.Equal(t, []string{protocol.CmdReadTemperature}, d.Received())
}

func TestDevicePlateMoves(t *testing.T) {
	d := NewDevice()
	d.PlaceOnTransfer("P7")

	send(t, d, protocol.CmdTransferToStorage, 7)
	frame, err := d.ReadUntil(protocol.EndOfText, time.Second)
	require.NoError(t, err)
	require.Equal(t, "\x02ts;40;00;00\x03", string(frame))

	barcode, ok := d.Plate(7)
	require.True(t, ok)
	require.Equal(t, "P7", barcode)
	_, ok = d.Transfer()
	require.False(t, ok)

	// Second store into an empty transfer station fails with no_plate
	send(t, d, protocol.CmdTransferToStorage, 8)
	frame, err = d.ReadUntil(protocol.EndOfText, time.Second)
	require.NoError(t, err)
	require.Equal(t, "\x02ts;10;00;08\x03", string(frame))
}

func TestDeviceFaultsAndDoor(t *testing.T) {
	d := NewDevice()
	d.SetDoorOpen(true)

	send(t, d, protocol.CmdReadTemperature)
	frame, err := d.ReadUntil(protocol.EndOfText, time.Second)
	require.NoError(t, err)
	require.Equal(t, "\x02rt;37;37;00;04\x03", string(frame))

	d.SetDoorOpen(false)
	d.InjectFault(protocol.CmdReadTemperature, protocol.ErrorClimate)
	send(t, d, protocol.CmdReadTemperature)
	send(t, d, protocol.CmdReadTemperature)

	frame, err = d.ReadUntil(protocol.EndOfText, time.Second)
	require.NoError(t, err)
	require.Equal(t, "\x02rt;37;37;00;80\x03", string(frame))

	frame, err = d.ReadUntil(protocol.EndOfText, time.Second)
	require.NoError(t, err)
	require.Equal(t, "\x02rt;37;37;00;00\x03", string(frame))
}

func TestDeviceIgnoresGarbage(t *testing.T) {
	d := NewDevice()

	n, err := d.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 0, d.Pending())
	require.Empty(t, d.Received())
}

func TestDeviceErrorsAndClose(t *testing.T) {
	d := NewDevice()
	boom := errors.New("boom")

	d.SetWriteError(boom)
	_, err := d.Write([]byte("\x02bs\x03"))
	require.ErrorIs(t, err, boom)
	d.SetWriteError(nil)

	d.SetReadError(boom)
	_, err = d.ReadUntil(protocol.EndOfText, time.Second)
	require.ErrorIs(t, err, boom)

	require.NoError(t, d.Close())
	_, err = d.Write([]byte("\x02bs\x03"))
	require.ErrorIs(t, err, os.ErrClosed)
}

func TestLoopbackEchoes(t *testing.T) {
	l := NewLoopback()

	_, err := l.Write([]byte("\x02gp;5\x03"))
	require.NoError(t, err)

	frame, err := l.ReadUntil(protocol.EndOfText, time.Second)
	require.NoError(t, err)
	require.Equal(t, "\x02gp;5\x03", string(frame))

	_, err = l.ReadUntil(protocol.EndOfText, time.Second)
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)
	require.Len(t, l.Written(), 1)
}

func TestScriptSteps(t *testing.T) {
	boom := errors.New("boom")
	s := NewScript("\x02bs;40\x03")
	s.Fail(boom)

	frame, err := s.ReadUntil(protocol.EndOfText, time.Second)
	require.NoError(t, err)
	require.Equal(t, "\x02bs;40\x03", string(frame))

	_, err = s.ReadUntil(protocol.EndOfText, time.Second)
	require.ErrorIs(t, err, boom)

	_, err = s.ReadUntil(protocol.EndOfText, time.Second)
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)
	require.Equal(t, 0, s.Remaining())
}
