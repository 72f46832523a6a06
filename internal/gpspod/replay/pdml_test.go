package replay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePDML = `<?xml version="1.0"?>
<pdml>
  <packet>
    <proto name="frame"><field name="frame.number" show="1"/></proto>
    <proto name="usb">
      <field name="usb.capdata" show="01:02:03:04" value="01:02:03:04"/>
    </proto>
  </packet>
  <packet>
    <proto name="frame"><field name="frame.number" show="2"/></proto>
    <proto name="usb">
      <field name="usb.capdata" show="aa:bb" value="AA:BB"/>
    </proto>
  </packet>
</pdml>
`

func TestReadPDMLExtractsCapturedPayloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.pdml")
	require.NoError(t, os.WriteFile(path, []byte(samplePDML), 0644))

	frames, err := ReadPDML(path)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, frames[0])
	require.Equal(t, []byte{0xAA, 0xBB}, frames[1])
}
