package cytomattest

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/moffa90/go-cytomat/protocol"
)

type pending struct {
	frame   []byte
	readyAt time.Duration
}

type reading struct {
	actual, setpoint float64
}

// Device simulates a Cytomat behind a serial line. It implements the
// cytomat.Transport and cytomat.InputFlusher interfaces.
//
// Time is virtual: a reply to a command with a configured delay becomes
// readable delay after the command was written, and ReadUntil advances the
// clock instead of sleeping. Replies are delivered in order, like bytes on
// a serial line.
type Device struct {
	mu sync.Mutex

	framing protocol.Framing
	now     time.Duration
	queue   []pending

	delays   map[string]time.Duration
	silent   map[string]bool
	oneShot  map[string]protocol.ErrorStatus
	errors   protocol.ErrorStatus
	warnings protocol.WarningStatus
	busy     int

	received []string
	closed   bool
	writeErr error
	readErr  error

	slots     map[int]string
	transfer  *string
	wait      *string
	handlerAt int
	gateOpen  bool
	doorOpen  bool
	climate   map[string]*reading
	shakers   [protocol.ShakerCount]int
	shaking   bool
	swap      protocol.SwapStationStatus
	action    protocol.ActionStatus
	target    protocol.ActionTarget
	typ       protocol.ActionType
	firmware  string
	serialNo  string
}

// NewDevice returns an idle, initialized device with empty storage.
func NewDevice() *Device {
	return &Device{
		framing: protocol.DefaultFraming,
		delays:  make(map[string]time.Duration),
		silent:  make(map[string]bool),
		oneShot: make(map[string]protocol.ErrorStatus),
		slots:   make(map[int]string),
		climate: map[string]*reading{
			protocol.CmdReadTemperature: {actual: 37, setpoint: 37},
			protocol.CmdReadCO2:         {actual: 5, setpoint: 5},
			protocol.CmdReadHumidity:    {actual: 90, setpoint: 90},
			protocol.CmdReadN2:          {actual: 0, setpoint: 0},
		},
		swap:     protocol.SwapAtPosition1 | protocol.SwapHomed,
		action:   protocol.ActionCompleted,
		firmware: "C2-SIM-1.0",
		serialNo: "SIM000001",
	}
}

// SetFraming changes the frame markers the device expects and replies with.
func (d *Device) SetFraming(f protocol.Framing) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.framing = f
}

// SetDelay makes replies to command arrive delay after it was written.
func (d *Device) SetDelay(command string, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delays[command] = delay
}

// SetSilent makes the device never reply to command.
func (d *Device) SetSilent(command string, silent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silent[command] = silent
}

// InjectFault sets errs in the next reply to command only.
func (d *Device) InjectFault(command string, errs protocol.ErrorStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.oneShot[command] = errs
}

// SetFaults sets the error register until it is cleared with ce.
func (d *Device) SetFaults(errs protocol.ErrorStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = errs
}

// SetWarnings sets the warning register.
func (d *Device) SetWarnings(w protocol.WarningStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.warnings = w
}

// SetDoorOpen opens or closes the incubator door. While open, every reply
// with an error register reports door_open.
func (d *Device) SetDoorOpen(open bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doorOpen = open
}

// SetBusyPolls makes the next n overview queries report busy.
func (d *Device) SetBusyPolls(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = n
}

// SetClimate sets the actual value and setpoint returned by a read command
// (rt, rc, rh or rn).
func (d *Device) SetClimate(command string, actual, setpoint float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.climate[command]; ok {
		r.actual, r.setpoint = actual, setpoint
	}
}

// PutPlate stores a plate with the given barcode in slot.
func (d *Device) PutPlate(slot int, barcode string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slots[slot] = barcode
}

// PlaceOnTransfer puts a plate on the transfer station.
func (d *Device) PlaceOnTransfer(barcode string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transfer = &barcode
}

// Plate returns the barcode of the plate in slot.
func (d *Device) Plate(slot int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.slots[slot]
	return b, ok
}

// Transfer returns the barcode of the plate on the transfer station.
func (d *Device) Transfer() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transfer == nil {
		return "", false
	}
	return *d.transfer, true
}

// SetWriteError makes every Write fail with err; nil restores writes.
func (d *Device) SetWriteError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeErr = err
}

// SetReadError makes every ReadUntil fail with err; nil restores reads.
func (d *Device) SetReadError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readErr = err
}

// Inject queues a raw frame that is readable immediately.
func (d *Device) Inject(frame []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, pending{frame: append([]byte(nil), frame...), readyAt: d.now})
}

// Advance moves the virtual clock forward.
func (d *Device) Advance(delta time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now += delta
}

// Elapsed returns the virtual time since the device was created.
func (d *Device) Elapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

// Received returns the names of all commands the device accepted.
func (d *Device) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.received...)
}

// Pending returns the number of queued replies, arrived or not.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Write accepts one command frame. Frames that do not decode as a known
// command are dropped without a reply.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, os.ErrClosed
	}
	if d.writeErr != nil {
		return 0, d.writeErr
	}

	fields, err := d.framing.Tokenize(p)
	if err != nil {
		return len(p), nil
	}
	cmd, err := protocol.DecodeCommand(fields)
	if err != nil {
		return len(p), nil
	}

	d.received = append(d.received, cmd.Name)
	reply := d.handle(cmd)
	if d.silent[cmd.Name] {
		return len(p), nil
	}

	start := d.now
	if n := len(d.queue); n > 0 && d.queue[n-1].readyAt > start {
		start = d.queue[n-1].readyAt
	}
	d.queue = append(d.queue, pending{
		frame:   d.framing.EncodeFields(cmd.Name, reply...),
		readyAt: start + d.delays[cmd.Name],
	})
	return len(p), nil
}

// ReadUntil returns the next reply if it arrives within timeout. Otherwise
// the clock advances by timeout and the error matches os.ErrDeadlineExceeded.
// The timeout is rounded up to whole milliseconds, so a caller passing the
// remaining real time of a deadline does not fall short of the virtual one.
func (d *Device) ReadUntil(delim byte, timeout time.Duration) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	timeout = (timeout + time.Millisecond - 1).Truncate(time.Millisecond)

	if d.closed {
		return nil, os.ErrClosed
	}
	if d.readErr != nil {
		return nil, d.readErr
	}

	if len(d.queue) > 0 && d.queue[0].readyAt <= d.now+timeout {
		next := d.queue[0]
		d.queue = d.queue[1:]
		if next.readyAt > d.now {
			d.now = next.readyAt
		}
		return next.frame, nil
	}

	d.now += timeout
	return nil, fmt.Errorf("cytomattest: read until 0x%02X: %w", delim, os.ErrDeadlineExceeded)
}

// FlushInput drops replies that have already arrived.
func (d *Device) FlushInput() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := d.queue[:0]
	for _, p := range d.queue {
		if p.readyAt > d.now {
			kept = append(kept, p)
		}
	}
	d.queue = kept
	return nil
}

// Close closes the device. Further reads and writes fail with os.ErrClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// handle applies a command to the simulated state and returns the reply
// fields after the command name.
func (d *Device) handle(cmd protocol.Command) []string {
	switch cmd.Name {
	case protocol.CmdTransferToStorage:
		slot := cmd.Args[0].(int)
		return d.act(cmd.Name, protocol.TargetStorage, protocol.TypePut, func() protocol.ErrorStatus {
			if d.transfer == nil {
				return protocol.ErrorNoPlate
			}
			if _, ok := d.slots[slot]; ok {
				return protocol.ErrorPositionOccupied
			}
			d.slots[slot] = *d.transfer
			d.transfer = nil
			d.handlerAt = slot
			return 0
		})
	case protocol.CmdStorageToTransfer:
		slot := cmd.Args[0].(int)
		return d.act(cmd.Name, protocol.TargetStorage, protocol.TypeGet, func() protocol.ErrorStatus {
			b, ok := d.slots[slot]
			if !ok {
				return protocol.ErrorNoPlate
			}
			if d.transfer != nil {
				return protocol.ErrorTransferBlocked
			}
			delete(d.slots, slot)
			d.transfer = &b
			d.handlerAt = slot
			return 0
		})
	case protocol.CmdStorageToWait:
		slot := cmd.Args[0].(int)
		return d.act(cmd.Name, protocol.TargetHandler, protocol.TypeGet, func() protocol.ErrorStatus {
			b, ok := d.slots[slot]
			if !ok {
				return protocol.ErrorNoPlate
			}
			if d.wait != nil {
				return protocol.ErrorPositionOccupied
			}
			delete(d.slots, slot)
			d.wait = &b
			d.handlerAt = slot
			return 0
		})
	case protocol.CmdWaitToStorage:
		slot := cmd.Args[0].(int)
		return d.act(cmd.Name, protocol.TargetStorage, protocol.TypePut, func() protocol.ErrorStatus {
			if d.wait == nil {
				return protocol.ErrorNoPlate
			}
			if _, ok := d.slots[slot]; ok {
				return protocol.ErrorPositionOccupied
			}
			d.slots[slot] = *d.wait
			d.wait = nil
			d.handlerAt = slot
			return 0
		})
	case protocol.CmdTransferToWait:
		return d.act(cmd.Name, protocol.TargetHandler, protocol.TypeGet, func() protocol.ErrorStatus {
			if d.transfer == nil {
				return protocol.ErrorNoPlate
			}
			if d.wait != nil {
				return protocol.ErrorPositionOccupied
			}
			d.wait, d.transfer = d.transfer, nil
			return 0
		})
	case protocol.CmdWaitToTransfer:
		return d.act(cmd.Name, protocol.TargetTransferStation, protocol.TypePut, func() protocol.ErrorStatus {
			if d.wait == nil {
				return protocol.ErrorNoPlate
			}
			if d.transfer != nil {
				return protocol.ErrorTransferBlocked
			}
			d.transfer, d.wait = d.wait, nil
			return 0
		})
	case protocol.CmdMoveHandler:
		slot := cmd.Args[0].(int)
		return d.act(cmd.Name, protocol.TargetHandler, protocol.TypeMove, func() protocol.ErrorStatus {
			d.handlerAt = slot
			return 0
		})
	case protocol.CmdPlatePresent:
		_, ok := d.slots[cmd.Args[0].(int)]
		return []string{formatBool(ok)}
	case protocol.CmdOpenGate, protocol.CmdCloseGate:
		open := cmd.Name == protocol.CmdOpenGate
		typ := protocol.TypeClose
		if open {
			typ = protocol.TypeOpen
		}
		return d.act(cmd.Name, protocol.TargetGate, typ, func() protocol.ErrorStatus {
			d.gateOpen = open
			return 0
		})

	case protocol.CmdReadTemperature, protocol.CmdReadCO2, protocol.CmdReadHumidity, protocol.CmdReadN2:
		r := d.climate[cmd.Name]
		return []string{formatFloat(r.actual), formatFloat(r.setpoint), d.warningField(), d.errorField(cmd.Name)}
	case protocol.CmdSetTemperature, protocol.CmdSetCO2, protocol.CmdSetHumidity, protocol.CmdSetN2:
		r := d.climate[setterOf[cmd.Name]]
		v := cmd.Args[0].(float64)
		return d.act(cmd.Name, protocol.TargetClimate, protocol.TypeIdle, func() protocol.ErrorStatus {
			r.setpoint, r.actual = v, v
			return 0
		})

	case protocol.CmdStartShaker, protocol.CmdStopShaker:
		on := cmd.Name == protocol.CmdStartShaker
		return d.act(cmd.Name, protocol.TargetShaker, protocol.TypeShake, func() protocol.ErrorStatus {
			d.shaking = on
			return 0
		})
	case protocol.CmdSetShakerFreq:
		i, rpm := cmd.Args[0].(int)-1, cmd.Args[1].(int)
		return d.act(cmd.Name, protocol.TargetShaker, protocol.TypeIdle, func() protocol.ErrorStatus {
			d.shakers[i] = rpm
			return 0
		})
	case protocol.CmdReadShakerFreq:
		rpm := d.shakers[cmd.Args[0].(int)-1]
		return []string{strconv.Itoa(rpm), d.warningField(), d.errorField(cmd.Name)}

	case protocol.CmdOverviewStatus:
		status := d.overview(d.registerErrors())
		if d.busy > 0 {
			d.busy--
			status = status&^protocol.OverviewReady | protocol.OverviewBusy
		}
		return []string{protocol.FormatBitfield(uint32(status), protocol.BitfieldWidth)}
	case protocol.CmdActionStatus:
		return []string{
			protocol.FormatBitfield(uint32(d.action), protocol.BitfieldWidth),
			strconv.Itoa(int(d.target)),
			strconv.Itoa(int(d.typ)),
		}
	case protocol.CmdWarningStatus:
		return []string{d.warningField()}
	case protocol.CmdErrorStatus:
		return []string{protocol.FormatBitfield(uint32(d.registerErrors()), protocol.BitfieldWidth)}
	case protocol.CmdClearErrors:
		d.errors = 0
		return d.act(cmd.Name, protocol.TargetSystem, protocol.TypeReset, func() protocol.ErrorStatus { return 0 })
	case protocol.CmdInitialize:
		target := cmd.Args[0].(protocol.ActionTarget)
		return d.act(cmd.Name, target, protocol.TypeInitialize, func() protocol.ErrorStatus {
			if target == protocol.TargetSwapStation || target == protocol.TargetSystem {
				d.swap = d.swap&(protocol.SwapPlateOnSide1|protocol.SwapPlateOnSide2) | protocol.SwapAtPosition1 | protocol.SwapHomed
			}
			return 0
		})
	case protocol.CmdReset:
		d.errors = 0
		return d.act(cmd.Name, protocol.TargetSystem, protocol.TypeReset, func() protocol.ErrorStatus {
			d.shaking = false
			d.gateOpen = false
			return 0
		})
	case protocol.CmdFirmwareVersion:
		return []string{d.firmware}
	case protocol.CmdSerialNumber:
		return []string{d.serialNo}

	case protocol.CmdReadBarcodeSlot:
		b, ok := d.slots[cmd.Args[0].(int)]
		return d.scan(cmd.Name, b, ok)
	case protocol.CmdReadBarcodeTransfer:
		if d.transfer == nil {
			return d.scan(cmd.Name, "", false)
		}
		return d.scan(cmd.Name, *d.transfer, true)

	case protocol.CmdSwapStationStatus:
		return []string{protocol.FormatBitfield(uint32(d.swap), protocol.BitfieldWidth)}
	case protocol.CmdRotateSwapStation:
		pos := cmd.Args[0].(int)
		return d.act(cmd.Name, protocol.TargetSwapStation, protocol.TypeRotate, func() protocol.ErrorStatus {
			d.swap &^= protocol.SwapAtPosition1 | protocol.SwapAtPosition2 | protocol.SwapRotating
			if pos == 1 {
				d.swap |= protocol.SwapAtPosition1
			} else {
				d.swap |= protocol.SwapAtPosition2
			}
			return 0
		})
	case protocol.CmdHomeSwapStation:
		return d.act(cmd.Name, protocol.TargetSwapStation, protocol.TypeInitialize, func() protocol.ErrorStatus {
			d.swap = d.swap&(protocol.SwapPlateOnSide1|protocol.SwapPlateOnSide2) | protocol.SwapAtPosition1 | protocol.SwapHomed
			return 0
		})
	}
	return nil
}

// setterOf maps each climate setpoint command to its read command.
var setterOf = map[string]string{
	protocol.CmdSetTemperature: protocol.CmdReadTemperature,
	protocol.CmdSetCO2:         protocol.CmdReadCO2,
	protocol.CmdSetHumidity:    protocol.CmdReadHumidity,
	protocol.CmdSetN2:          protocol.CmdReadN2,
}

// act runs an action unless a fault is pending and builds the action reply.
func (d *Device) act(name string, target protocol.ActionTarget, typ protocol.ActionType, apply func() protocol.ErrorStatus) []string {
	errs := d.replyErrors(name)
	if errs == 0 {
		errs = apply()
	}

	d.target, d.typ = target, typ
	if errs == 0 {
		d.action = protocol.ActionCompleted
	} else {
		d.action = protocol.ActionAborted
	}

	return []string{
		protocol.FormatBitfield(uint32(d.overview(errs)), protocol.BitfieldWidth),
		d.warningField(),
		protocol.FormatBitfield(uint32(errs), protocol.BitfieldWidth),
	}
}

func (d *Device) scan(name, barcode string, present bool) []string {
	errs := d.replyErrors(name)
	if errs == 0 && !present {
		errs = protocol.ErrorNoPlate
		barcode = ""
	}
	d.target, d.typ, d.action = protocol.TargetBarcodeReader, protocol.TypeScan, protocol.ActionCompleted
	return []string{barcode, d.warningField(), protocol.FormatBitfield(uint32(errs), protocol.BitfieldWidth)}
}

// registerErrors is the standing error register.
func (d *Device) registerErrors() protocol.ErrorStatus {
	errs := d.errors
	if d.doorOpen {
		errs |= protocol.ErrorDoorOpen
	}
	return errs
}

// replyErrors is the error register for one reply, consuming any one-shot fault.
func (d *Device) replyErrors(name string) protocol.ErrorStatus {
	errs := d.registerErrors() | d.oneShot[name]
	delete(d.oneShot, name)
	return errs
}

func (d *Device) errorField(name string) string {
	return protocol.FormatBitfield(uint32(d.replyErrors(name)), protocol.BitfieldWidth)
}

func (d *Device) warningField() string {
	return protocol.FormatBitfield(uint32(d.warnings), protocol.BitfieldWidth)
}

func (d *Device) overview(errs protocol.ErrorStatus) protocol.OverviewStatus {
	var s protocol.OverviewStatus
	if d.transfer != nil {
		s |= protocol.OverviewTransferOccupied
	}
	if d.doorOpen {
		s |= protocol.OverviewDoorOpen
	}
	if d.gateOpen {
		s |= protocol.OverviewGateOpen
	}
	if d.wait != nil {
		s |= protocol.OverviewHandlerOccupied
	}
	if errs != 0 {
		s |= protocol.OverviewErrorPending
	} else {
		s |= protocol.OverviewReady
	}
	if d.warnings != 0 {
		s |= protocol.OverviewWarningPending
	}
	return s
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
