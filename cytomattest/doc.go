// Package cytomattest provides transports for testing code that drives a
// Cytomat without hardware.
//
//   - Device simulates the instrument: storage slots, transfer station,
//     wait position, climate, shakers, barcode reader and swap station,
//     with per-command reply delays on a virtual clock, silent commands,
//     and injectable faults and warnings.
//   - Loopback reads back every written frame.
//   - Script replies with a fixed sequence of frames and errors.
//
// Example:
//
//	dev := cytomattest.NewDevice()
//	dev.PutPlate(5, "PLATE-0005")
//	dev.SetDelay(protocol.CmdStorageToTransfer, 8*time.Second)
//
//	s := cytomat.NewSession(dev)
//	present, err := s.Plates.PlatePresent(ctx, 5) // true
package cytomattest
