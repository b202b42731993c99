package protocol

// ProtocolVersion is the Cytomat serial command set implemented by this library.
// Flag and code tables are tied to this version and are never renumbered.
const ProtocolVersion = "2.1"

// Frame structure constants.
const (
	// StartOfText is the frame start marker (STX, 0x02)
	StartOfText = 0x02

	// EndOfText is the frame end marker (ETX, 0x03)
	EndOfText = 0x03

	// FieldDelimiter separates the command name and each field (';')
	FieldDelimiter = ';'

	// MinFrameSize is the minimum frame size in bytes:
	// STX(1) + NAME(2) + ETX(1)
	MinFrameSize = 4

	// NameLength is the length of every command identifier
	NameLength = 2

	// MaxFrameSize bounds a single inbound frame. Longer reads indicate desync.
	MaxFrameSize = 256
)

// Plate handler command names.
const (
	// CmdTransferToStorage moves the plate on the transfer station into a storage slot
	CmdTransferToStorage = "ts"

	// CmdStorageToTransfer moves the plate in a storage slot onto the transfer station
	CmdStorageToTransfer = "st"

	// CmdStorageToWait moves the plate in a storage slot to the handler wait position
	CmdStorageToWait = "sw"

	// CmdWaitToStorage moves the plate at the wait position into a storage slot
	CmdWaitToStorage = "ws"

	// CmdTransferToWait moves the plate on the transfer station to the wait position
	CmdTransferToWait = "tw"

	// CmdWaitToTransfer moves the plate at the wait position onto the transfer station
	CmdWaitToTransfer = "wt"

	// CmdMoveHandler positions the empty handler in front of a storage slot
	CmdMoveHandler = "hp"

	// CmdPlatePresent queries plate presence at a storage slot
	CmdPlatePresent = "gp"

	// CmdOpenGate opens the automatic gate
	CmdOpenGate = "go"

	// CmdCloseGate closes the automatic gate
	CmdCloseGate = "gc"
)

// Climate command names.
const (
	CmdReadTemperature = "rt"
	CmdSetTemperature  = "tt"
	CmdReadCO2         = "rc"
	CmdSetCO2          = "tc"
	CmdReadHumidity    = "rh"
	CmdSetHumidity     = "th"
	CmdReadN2          = "rn"
	CmdSetN2           = "tn"
)

// Shaker command names.
const (
	CmdStartShaker    = "ss"
	CmdStopShaker     = "sx"
	CmdSetShakerFreq  = "sf"
	CmdReadShakerFreq = "rf"
)

// Maintenance command names.
const (
	// CmdOverviewStatus reads the overview status register
	CmdOverviewStatus = "bs"

	// CmdActionStatus reads the current action register with its target and type
	CmdActionStatus = "ba"

	// CmdWarningStatus reads the warning register
	CmdWarningStatus = "bw"

	// CmdErrorStatus reads the error register
	CmdErrorStatus = "be"

	// CmdClearErrors clears the error register
	CmdClearErrors = "ce"

	// CmdInitialize initializes one subsystem
	CmdInitialize = "in"

	// CmdReset performs a soft reset of the controller
	CmdReset = "rs"

	// CmdFirmwareVersion reads the controller firmware version string
	CmdFirmwareVersion = "vn"

	// CmdSerialNumber reads the device serial number
	CmdSerialNumber = "sn"
)

// Barcode scanner command names.
const (
	CmdReadBarcodeSlot     = "bc"
	CmdReadBarcodeTransfer = "bt"
)

// Swap station command names.
const (
	CmdSwapStationStatus = "xs"
	CmdRotateSwapStation = "xr"
	CmdHomeSwapStation   = "xh"
)

// Argument limits.
const (
	// MinSlot is the first addressable storage slot
	MinSlot = 1

	// MaxSlot is the last addressable storage slot
	MaxSlot = 999

	// MaxTemperature is the highest accepted temperature setpoint in °C
	MaxTemperature = 50.0

	// MaxCO2 is the highest accepted CO2 setpoint in percent
	MaxCO2 = 20.0

	// MaxShakerFrequency is the highest accepted shaker frequency in rpm
	MaxShakerFrequency = 2000

	// ShakerCount is the number of independently driven shakers
	ShakerCount = 2

	// SwapPositions is the number of swap station positions
	SwapPositions = 2
)
