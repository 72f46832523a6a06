package config

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("GPSPOD_READ_TIMEOUT", "500")
	t.Setenv("GPSPOD_READ_SLEEP_MINSIZE", "8192")
	t.Setenv("GPSPOD_READ_SLEEP_DURATION", "50")

	c := FromEnv(Defaults())
	require.Equal(t, 500*time.Millisecond, c.ReadTimeout)
	require.Equal(t, 8192, c.ReadSleepMinSize)
	require.Equal(t, 50*time.Millisecond, c.ReadSleepDuration)
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("GPSPOD_READ_TIMEOUT", "not-a-number")
	base := Defaults()
	c := FromEnv(base)
	require.Equal(t, base.ReadTimeout, c.ReadTimeout)
}

func TestRegisterFlagsOverridesBase(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	handle := RegisterFlags(fs, Defaults())
	require.NoError(t, fs.Parse([]string{"--read-timeout=999", "--read-sleep-minsize=1024"}))

	c := handle.Resolve()
	require.Equal(t, 999*time.Millisecond, c.ReadTimeout)
	require.Equal(t, 1024, c.ReadSleepMinSize)
}
