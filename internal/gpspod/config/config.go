// Package config carries the client's pacing knobs, loaded from
// environment variables with CLI flag overrides.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds the tunables governing how aggressively the client
// talks to the device.
type Config struct {
	// ReadTimeout bounds a single transport read.
	ReadTimeout time.Duration
	// ReadSleepMinSize is the byte-count threshold above which the
	// client pauses after a read to let the device catch up.
	ReadSleepMinSize int
	// ReadSleepDuration is how long to pause when ReadSleepMinSize is exceeded.
	ReadSleepDuration time.Duration
}

// Defaults mirror values observed to work reliably against the device family.
func Defaults() Config {
	return Config{
		ReadTimeout:       2 * time.Second,
		ReadSleepMinSize:  4096,
		ReadSleepDuration: 20 * time.Millisecond,
	}
}

// FromEnv applies GPSPOD_READ_TIMEOUT / GPSPOD_READ_SLEEP_MINSIZE /
// GPSPOD_READ_SLEEP_DURATION (milliseconds or bytes, as applicable)
// over the given base.
func FromEnv(base Config) Config {
	c := base
	if v, ok := envMillis("GPSPOD_READ_TIMEOUT"); ok {
		c.ReadTimeout = v
	}
	if v, ok := envInt("GPSPOD_READ_SLEEP_MINSIZE"); ok {
		c.ReadSleepMinSize = v
	}
	if v, ok := envMillis("GPSPOD_READ_SLEEP_DURATION"); ok {
		c.ReadSleepDuration = v
	}
	return c
}

func envMillis(name string) (time.Duration, bool) {
	v, ok := envInt(name)
	if !ok {
		return 0, false
	}
	return time.Duration(v) * time.Millisecond, true
}

func envInt(name string) (int, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Flags binds --read-timeout, --read-sleep-minsize, and
// --read-sleep-duration to fs. Call Resolve after fs.Parse to obtain
// the final Config.
type Flags struct {
	readTimeoutMs       int
	readSleepMinSize    int
	readSleepDurationMs int
}

// RegisterFlags seeds fs with base's values as defaults and returns the
// Flags handle needed to resolve the parsed result back into a Config.
func RegisterFlags(fs *flag.FlagSet, base Config) *Flags {
	f := &Flags{
		readTimeoutMs:       int(base.ReadTimeout / time.Millisecond),
		readSleepMinSize:    base.ReadSleepMinSize,
		readSleepDurationMs: int(base.ReadSleepDuration / time.Millisecond),
	}
	fs.IntVar(&f.readTimeoutMs, "read-timeout", f.readTimeoutMs, "milliseconds per transport read")
	fs.IntVar(&f.readSleepMinSize, "read-sleep-minsize", f.readSleepMinSize, "bytes threshold above which to pause after a read")
	fs.IntVar(&f.readSleepDurationMs, "read-sleep-duration", f.readSleepDurationMs, "milliseconds to pause after a large read")
	return f
}

// Resolve converts parsed flag values back into a Config.
func (f *Flags) Resolve() Config {
	return Config{
		ReadTimeout:       time.Duration(f.readTimeoutMs) * time.Millisecond,
		ReadSleepMinSize:  f.readSleepMinSize,
		ReadSleepDuration: time.Duration(f.readSleepDurationMs) * time.Millisecond,
	}
}
