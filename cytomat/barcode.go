package cytomat

import (
	"context"

	"github.com/moffa90/go-cytomat/protocol"
)

// Barcode is a scanned plate barcode. Text is empty when the label could
// not be read but the device reported no fault.
type Barcode struct {
	Text     string
	Warnings protocol.WarningStatus
}

// BarcodeScanner reads plate barcodes.
type BarcodeScanner struct {
	inv Invoker
}

// NewBarcodeScanner creates a barcode scanner controller.
func NewBarcodeScanner(inv Invoker) *BarcodeScanner {
	return &BarcodeScanner{inv: inv}
}

// ReadSlot scans the plate in slot.
func (b *BarcodeScanner) ReadSlot(ctx context.Context, slot int) (Barcode, error) {
	return b.read(ctx, protocol.CmdReadBarcodeSlot, slot)
}

// ReadTransferStation scans the plate on the transfer station.
func (b *BarcodeScanner) ReadTransferStation(ctx context.Context) (Barcode, error) {
	return b.read(ctx, protocol.CmdReadBarcodeTransfer)
}

func (b *BarcodeScanner) read(ctx context.Context, name string, args ...any) (Barcode, error) {
	text, resp, err := invokeValue[string](ctx, b.inv, name, args...)
	if err != nil {
		return Barcode{}, err
	}
	return Barcode{Text: text, Warnings: resp.Warnings}, nil
}
