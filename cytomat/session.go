package cytomat

// Session is an open connection to one Cytomat: the engine plus one
// controller per subsystem, all sharing the engine's serialized exchanges.
type Session struct {
	engine *Engine

	Plates      *PlateHandler
	Climate     *Climate
	Shaker      *Shaker
	Maintenance *Maintenance
	Barcode     *BarcodeScanner
	SwapStation *SwapStation
}

// NewSession creates a session over the transport. The session owns the
// transport and closes it on Close.
//
// Example:
//
//	port, err := serial.Open(serial.DefaultConfig("/dev/ttyUSB0"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s := cytomat.NewSession(port)
//	defer s.Close()
//
//	present, err := s.Plates.PlatePresent(ctx, 5)
func NewSession(transport Transport, opts ...Option) *Session {
	e := New(transport, opts...)
	return &Session{
		engine:      e,
		Plates:      NewPlateHandler(e),
		Climate:     NewClimate(e),
		Shaker:      NewShaker(e),
		Maintenance: NewMaintenance(e),
		Barcode:     NewBarcodeScanner(e),
		SwapStation: NewSwapStation(e),
	}
}

// Engine returns the session's protocol engine for raw commands.
func (s *Session) Engine() *Engine {
	return s.engine
}

// Close closes the underlying transport.
func (s *Session) Close() error {
	return s.engine.Close()
}
