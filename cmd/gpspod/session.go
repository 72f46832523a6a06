package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/gpspod/internal/gpspod/command"
	"github.com/banshee-data/gpspod/internal/gpspod/config"
	"github.com/banshee-data/gpspod/internal/gpspod/gpserr"
	"github.com/banshee-data/gpspod/internal/gpspod/logging"
	"github.com/banshee-data/gpspod/internal/gpspod/memview"
	"github.com/banshee-data/gpspod/internal/gpspod/packet"
	"github.com/banshee-data/gpspod/internal/gpspod/replay"
	"github.com/banshee-data/gpspod/internal/gpspod/transport"
	"github.com/google/gousb"
)

// defaultVendorID and defaultProductID identify this device family.
// They can be overridden with --vendor-id / --product-id for other
// units of the same family.
const (
	defaultVendorID  = 0x1493
	defaultProductID = 0x0014
)

// deviceFlags holds the transport-selection flags shared by every
// subcommand that talks to a device.
type deviceFlags struct {
	vendorID  string
	productID string
	replayLog string
	record    string
	cacheDB   string
}

func registerDeviceFlags(fs *flag.FlagSet) *deviceFlags {
	d := &deviceFlags{}
	fs.StringVar(&d.vendorID, "vendor-id", fmt.Sprintf("%#04x", defaultVendorID), "USB vendor ID (hex)")
	fs.StringVar(&d.productID, "product-id", fmt.Sprintf("%#04x", defaultProductID), "USB product ID (hex)")
	fs.StringVar(&d.replayLog, "replay-log", "", "replay a recorded session log instead of opening a live device")
	fs.StringVar(&d.record, "record", "", "tee the live session to a recorded log at this path")
	fs.StringVar(&d.cacheDB, "cache-db", "", "optional path to a persistent SQLite PMEM chunk cache")
	return d
}

// session bundles everything a subcommand needs to talk to the device
// and must be closed when the command finishes.
type session struct {
	client *command.Client
	mv     *memview.MemoryView
	log    *logging.Logger

	transport transport.Transport
	cache     *memview.Cache
}

func (s *session) Close() error {
	var firstErr error
	if s.cache != nil {
		if err := s.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.transport != nil {
		if err := s.transport.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// openSession wires Transport → Codec → Client → MemoryView,
// honouring the pacing knobs in cfg.
func openSession(df *deviceFlags, cfg config.Config) (*session, error) {
	log := logging.Default("gpspod")

	t, err := openTransport(df)
	if err != nil {
		return nil, err
	}

	if df.record != "" {
		rec, err := replay.NewRecorder(t, df.record)
		if err != nil {
			t.Close()
			return nil, err
		}
		t = rec
	}

	codec := packet.NewCodec(t, log)
	client := command.NewClient(codec, cfg.ReadTimeout, log).
		WithPacing(cfg.ReadSleepMinSize, cfg.ReadSleepDuration)

	var opts []memview.Option
	var cache *memview.Cache
	if df.cacheDB != "" {
		info, err := client.DeviceInfo()
		if err != nil {
			t.Close()
			return nil, err
		}
		cache, err = memview.OpenCache(df.cacheDB, info.Serial)
		if err != nil {
			t.Close()
			return nil, err
		}
		opts = append(opts, memview.WithPersistent(cache))
	}

	mv := memview.New(client, log, opts...)

	return &session{client: client, mv: mv, log: log, transport: t, cache: cache}, nil
}

// openTransport selects the live raw-USB backend or, when --replay-log
// is set, the replay transport substituting recorded reads for live ones.
func openTransport(df *deviceFlags) (transport.Transport, error) {
	if df.replayLog != "" {
		return replay.Open(df.replayLog, packet.ReportSize)
	}

	vid, err := parseUSBID(df.vendorID)
	if err != nil {
		return nil, gpserr.New(gpserr.KindUsage, err, "--vendor-id: %v", err)
	}
	pid, err := parseUSBID(df.productID)
	if err != nil {
		return nil, gpserr.New(gpserr.KindUsage, err, "--product-id: %v", err)
	}

	t, err := transport.OpenUsbDevBackend(transport.UsbDevConfig{
		VendorID:    gousb.ID(vid),
		ProductID:   gousb.ID(pid),
		Config:      1,
		Interface:   0,
		AltSetting:  0,
		EndpointIn:  1,
		EndpointOut: 1,
		ReportSize:  packet.ReportSize,
	})
	if err != nil {
		return nil, gpserr.New(gpserr.KindTransport, err, "%v (hint: the device is often slow to enumerate right after plug-in, try again)", err)
	}
	return t, nil
}

func parseUSBID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid hex USB id %q: %w", s, err)
	}
	return uint16(v), nil
}
