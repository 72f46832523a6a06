// Command gpspod is the CLI surface for the host-side GpsPod client:
// device info, battery status, settings, track listing/retrieval as
// GPX, a raw memory dump, and an offline PDML replay utility for
// protocol development.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/gpspod/internal/gpspod/config"
	"github.com/banshee-data/gpspod/internal/gpspod/gpserr"
	"github.com/banshee-data/gpspod/internal/gpspod/gpx"
	"github.com/banshee-data/gpspod/internal/gpspod/memview"
	"github.com/banshee-data/gpspod/internal/gpspod/packet"
	"github.com/banshee-data/gpspod/internal/gpspod/replay"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", formatErr(err))
		os.Exit(gpserr.ExitCode(err))
	}
}

// formatErr renders the CLI's single-line error form
// "<kind>: <human reason>", with the DecodeError offset if present.
func formatErr(err error) string {
	var ge *gpserr.Error
	if e, ok := err.(*gpserr.Error); ok {
		ge = e
	}
	if ge != nil {
		return ge.Error()
	}
	return gpserr.New(gpserr.KindUsage, err, "%v", err).Error()
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return gpserr.New(gpserr.KindUsage, nil, "no command given")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "device":
		return runDevice(rest)
	case "status":
		return runStatus(rest)
	case "settings":
		return runSettings(rest)
	case "tracks":
		return runTracks(rest)
	case "retrieve":
		return runRetrieve(rest)
	case "dump":
		return runDump(rest)
	case "debug":
		return runDebug(rest)
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return gpserr.New(gpserr.KindUsage, nil, "unknown command %q", cmd)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: gpspod <command> [flags]

commands:
  device                  print device model/serial/firmware info
  status                  print battery status
  settings get            read the settings blob
  settings set            write bytes into the settings blob
  tracks                  list recorded tracks
  retrieve <n>            export track n as GPX
  dump <path>             dump the entire memory region to a file
  debug <pdml>            replay a captured Wireshark PDML exchange`)
}

// baseConfig builds the pacing Config from GPSPOD_READ_* environment
// variables, letting fs flags registered afterwards override it.
func baseConfig() config.Config {
	return config.FromEnv(config.Defaults())
}

func runDevice(args []string) error {
	fs := flag.NewFlagSet("device", flag.ContinueOnError)
	df := registerDeviceFlags(fs)
	cf := config.RegisterFlags(fs, baseConfig())
	if err := fs.Parse(args); err != nil {
		return gpserr.New(gpserr.KindUsage, err, "%v", err)
	}

	sess, err := openSession(df, cf.Resolve())
	if err != nil {
		return err
	}
	defer sess.Close()

	info, err := sess.client.DeviceInfo()
	if err != nil {
		return err
	}

	fmt.Printf("Model: %s\n", info.Model)
	fmt.Printf("Serial: %s\n", info.Serial)
	fmt.Printf("Firmware: %s\n", info.FirmwareVersion)
	fmt.Printf("Hardware: %s\n", info.HardwareVersion)
	fmt.Printf("Bootloader: %s\n", info.BootloaderVersion)
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	df := registerDeviceFlags(fs)
	cf := config.RegisterFlags(fs, baseConfig())
	if err := fs.Parse(args); err != nil {
		return gpserr.New(gpserr.KindUsage, err, "%v", err)
	}

	sess, err := openSession(df, cf.Resolve())
	if err != nil {
		return err
	}
	defer sess.Close()

	st, err := sess.client.DeviceStatus()
	if err != nil {
		return err
	}
	fmt.Printf("Charge: %d%%\n", st.BatteryChargePercent)
	return nil
}

func runSettings(args []string) error {
	if len(args) == 0 {
		return gpserr.New(gpserr.KindUsage, nil, "settings requires a subcommand: get, set")
	}

	switch args[0] {
	case "get":
		return runSettingsGet(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	default:
		return gpserr.New(gpserr.KindUsage, nil, "unknown settings subcommand %q", args[0])
	}
}

func runSettingsGet(args []string) error {
	fs := flag.NewFlagSet("settings get", flag.ContinueOnError)
	df := registerDeviceFlags(fs)
	cf := config.RegisterFlags(fs, baseConfig())
	output := fs.String("output", "", "write the settings blob to this file instead of stdout (hex)")
	if err := fs.Parse(args); err != nil {
		return gpserr.New(gpserr.KindUsage, err, "%v", err)
	}

	sess, err := openSession(df, cf.Resolve())
	if err != nil {
		return err
	}
	defer sess.Close()

	blob, err := sess.client.ReadSettings()
	if err != nil {
		return err
	}

	if *output == "" {
		fmt.Printf("%x\n", blob)
		return nil
	}
	if err := os.WriteFile(*output, blob, 0o644); err != nil {
		return gpserr.New(gpserr.KindUsage, err, "writing %s: %v", *output, err)
	}
	return nil
}

func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	df := registerDeviceFlags(fs)
	cf := config.RegisterFlags(fs, baseConfig())
	offset := fs.Uint("offset", 0, "byte offset within the settings blob")
	hexData := fs.String("data", "", "hex-encoded bytes to write")
	if err := fs.Parse(args); err != nil {
		return gpserr.New(gpserr.KindUsage, err, "%v", err)
	}
	if *hexData == "" {
		return gpserr.New(gpserr.KindUsage, nil, "settings set requires --data <hex>")
	}

	data, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(*hexData, "0x"), "0X"))
	if err != nil {
		return gpserr.New(gpserr.KindUsage, err, "--data: %v", err)
	}

	sess, err := openSession(df, cf.Resolve())
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.client.WriteSetting(uint32(*offset), data); err != nil {
		return err
	}
	sess.mv.Invalidate(int64(*offset), int64(*offset)+int64(len(data)))
	return nil
}

func runTracks(args []string) error {
	fs := flag.NewFlagSet("tracks", flag.ContinueOnError)
	df := registerDeviceFlags(fs)
	cf := config.RegisterFlags(fs, baseConfig())
	asJSON := fs.Bool("json", false, "print tracks as JSON")
	if err := fs.Parse(args); err != nil {
		return gpserr.New(gpserr.KindUsage, err, "%v", err)
	}

	sess, err := openSession(df, cf.Resolve())
	if err != nil {
		return err
	}
	defer sess.Close()

	tracks, warnings, err := decodeTracks(sess.mv)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}
	return printTracks(os.Stdout, tracks, *asJSON)
}

func runRetrieve(args []string) error {
	fs := flag.NewFlagSet("retrieve", flag.ContinueOnError)
	df := registerDeviceFlags(fs)
	cf := config.RegisterFlags(fs, baseConfig())
	output := fs.String("output", "", "output GPX file path (defaults to track-<n>.gpx)")
	lapSplits := fs.Bool("lap-splits-segments", false, "start a new <trkseg> at each lap")
	lapWaypoint := fs.Bool("lap-adds-waypoint", false, "emit a <wpt> for each lap")
	allPoints := fs.Bool("all-points", false, "include GPS samples with no fix")
	if err := fs.Parse(args); err != nil {
		return gpserr.New(gpserr.KindUsage, err, "%v", err)
	}
	if fs.NArg() != 1 {
		return gpserr.New(gpserr.KindUsage, nil, "retrieve requires exactly one track index")
	}
	idx, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return gpserr.New(gpserr.KindUsage, err, "invalid track index %q", fs.Arg(0))
	}

	sess, err := openSession(df, cf.Resolve())
	if err != nil {
		return err
	}
	defer sess.Close()

	tracks, warnings, err := decodeTracks(sess.mv)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	tr, err := selectTrack(tracks, idx)
	if err != nil {
		return err
	}

	doc, err := renderTrackGPX(tr, gpx.Options{
		LapSplitsSegments: *lapSplits,
		LapAddsWaypoint:   *lapWaypoint,
		AllPoints:         *allPoints,
	})
	if err != nil {
		return err
	}

	path := *output
	if path == "" {
		path = fmt.Sprintf("track-%d.gpx", idx)
	}
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return gpserr.New(gpserr.KindUsage, err, "writing %s: %v", path, err)
	}
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	df := registerDeviceFlags(fs)
	cf := config.RegisterFlags(fs, baseConfig())
	format := fs.String("format", "raw", "dump format: raw or pcap")
	if err := fs.Parse(args); err != nil {
		return gpserr.New(gpserr.KindUsage, err, "%v", err)
	}
	if fs.NArg() != 1 {
		return gpserr.New(gpserr.KindUsage, nil, "dump requires an output path")
	}
	path := fs.Arg(0)

	sess, err := openSession(df, cf.Resolve())
	if err != nil {
		return err
	}
	defer sess.Close()

	switch *format {
	case "raw":
		return dumpRaw(sess, path)
	case "pcap":
		return dumpPcap(sess, path)
	default:
		return gpserr.New(gpserr.KindUsage, nil, "unknown dump format %q", *format)
	}
}

func dumpRaw(sess *session, path string) error {
	pmemLayout, err := readWholeRegion(sess)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, pmemLayout, 0o644); err != nil {
		return gpserr.New(gpserr.KindUsage, err, "writing %s: %v", path, err)
	}
	return nil
}

func dumpPcap(sess *session, path string) error {
	data, err := readWholeRegion(sess)
	if err != nil {
		return err
	}

	w, err := replay.NewPcapWriter(path)
	if err != nil {
		return gpserr.New(gpserr.KindUsage, err, "%v", err)
	}
	defer w.Close()

	const chunk = 4096
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		if err := w.WriteFrame(replay.DirRead, data[off:end]); err != nil {
			return gpserr.New(gpserr.KindUsage, err, "writing pcap frame: %v", err)
		}
	}
	return nil
}

func readWholeRegion(sess *session) ([]byte, error) {
	return sess.mv.Read(0, int64(memview.RegionSize))
}

func runDebug(args []string) error {
	fs := flag.NewFlagSet("debug", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return gpserr.New(gpserr.KindUsage, err, "%v", err)
	}
	if fs.NArg() != 1 {
		return gpserr.New(gpserr.KindUsage, nil, "debug requires a path to a PDML capture")
	}

	raw, err := replay.ReadPDML(fs.Arg(0))
	if err != nil {
		return gpserr.New(gpserr.KindUsage, err, "%v", err)
	}

	for i, frame := range raw {
		p, err := packet.Unmarshal(frame)
		if err != nil {
			fmt.Printf("%d: %d bytes, unparsable as a packet: %v\n", i, len(frame), err)
			continue
		}
		fmt.Printf("%d: type=%d seq=%d index=%d/%d len=%d\n", i, p.Type, p.Seq, p.Index, p.Total, len(p.Payload))
	}
	return nil
}
