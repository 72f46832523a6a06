package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// UsbDevBackend is the raw-USB Transport flavour: it opens the device
// by vendor/product ID and moves fixed-size reports over an interrupt
// IN/OUT endpoint pair, bypassing any HID-class kernel driver.
type UsbDevBackend struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint

	reportSize int
}

// UsbDevConfig identifies the device and its HID endpoints.
type UsbDevConfig struct {
	VendorID    gousb.ID
	ProductID   gousb.ID
	Config      int
	Interface   int
	AltSetting  int
	EndpointIn  int
	EndpointOut int
	ReportSize  int
}

// OpenUsbDevBackend opens the device and claims its interrupt endpoints.
func OpenUsbDevBackend(cfg UsbDevConfig) (*UsbDevBackend, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(cfg.VendorID, cfg.ProductID)
	if err != nil {
		ctx.Close()
		return nil, &Error{Op: "open", Err: err}
	}
	if dev == nil {
		ctx.Close()
		return nil, &Error{Op: "open", Err: fmt.Errorf("device not found (VID:%s PID:%s)", cfg.VendorID, cfg.ProductID)}
	}

	config, err := dev.Config(cfg.Config)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, &Error{Op: "set config", Err: err}
	}

	intf, err := config.Interface(cfg.Interface, cfg.AltSetting)
	if err != nil {
		config.Close()
		dev.Close()
		ctx.Close()
		return nil, &Error{Op: "claim interface", Err: err}
	}

	epOut, err := intf.OutEndpoint(cfg.EndpointOut)
	if err != nil {
		intf.Close()
		config.Close()
		dev.Close()
		ctx.Close()
		return nil, &Error{Op: "open out endpoint", Err: err}
	}

	epIn, err := intf.InEndpoint(cfg.EndpointIn)
	if err != nil {
		intf.Close()
		config.Close()
		dev.Close()
		ctx.Close()
		return nil, &Error{Op: "open in endpoint", Err: err}
	}

	reportSize := cfg.ReportSize
	if reportSize == 0 {
		reportSize = 64
	}

	return &UsbDevBackend{
		ctx:        ctx,
		device:     dev,
		config:     config,
		intf:       intf,
		epOut:      epOut,
		epIn:       epIn,
		reportSize: reportSize,
	}, nil
}

// ReportSize implements Transport.
func (b *UsbDevBackend) ReportSize() int { return b.reportSize }

// WriteReport implements Transport.
func (b *UsbDevBackend) WriteReport(report []byte) error {
	_, err := b.epOut.Write(report)
	if err != nil {
		return &Error{Op: "write report", Err: err}
	}
	return nil
}

// ReadReport implements Transport. gousb's interrupt endpoints have no
// built-in per-call deadline, so the read runs on its own goroutine and
// is raced against the context's timeout.
func (b *UsbDevBackend) ReadReport(timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type result struct {
		buf []byte
		err error
	}
	done := make(chan result, 1)

	go func() {
		buf := make([]byte, b.reportSize)
		n, err := b.epIn.ReadContext(ctx, buf)
		done <- result{buf: buf[:n], err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, &Error{Op: "read report", Err: r.err}
		}
		return r.buf, nil
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// Close implements Transport.
func (b *UsbDevBackend) Close() error {
	if b.intf != nil {
		b.intf.Close()
	}
	if b.config != nil {
		b.config.Close()
	}
	if b.device != nil {
		b.device.Close()
	}
	if b.ctx != nil {
		b.ctx.Close()
	}
	return nil
}
