// Package command implements the typed request/reply commands built on
// the packet codec: device info, battery status, settings read/write,
// timed memory read, file directory enumeration.
package command

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/gpspod/internal/gpspod/gpserr"
	"github.com/banshee-data/gpspod/internal/gpspod/logging"
	"github.com/banshee-data/gpspod/internal/gpspod/packet"
	"github.com/banshee-data/gpspod/internal/gpspod/transport"
)

// retryBackoff is the exponential backoff schedule for transient
// transport/packet errors.
var retryBackoff = []time.Duration{10 * time.Millisecond, 40 * time.Millisecond, 160 * time.Millisecond}

// Client issues typed commands against a packet Codec, retrying
// transient transport/packet errors with backoff.
type Client struct {
	codec         *packet.Codec
	timeout       time.Duration
	log           *logging.Logger
	sleepMinSize  int
	sleepDuration time.Duration
}

// NewClient wraps a Codec with the command layer's retry policy.
func NewClient(codec *packet.Codec, timeout time.Duration, log *logging.Logger) *Client {
	return &Client{codec: codec, timeout: timeout, log: log}
}

// WithPacing configures the post-large-read sleep policy: after any
// ReadMemory of at least minSize bytes the client pauses for dur. A zero
// minSize disables pacing, which is NewClient's default. This exists
// solely to accommodate host USB stacks that corrupt subsequent
// transfers without a pause between large reads.
func (c *Client) WithPacing(minSize int, dur time.Duration) *Client {
	c.sleepMinSize = minSize
	c.sleepDuration = dur
	return c
}

// exchange runs a command, retrying transient transport/packet errors up
// to len(retryBackoff) additional attempts before surfacing them as the
// appropriate kind.
func (c *Client) exchange(code Code, payload []byte) (replyPayload []byte, err error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		var replyCode uint16
		replyCode, replyPayload, lastErr = c.codec.Exchange(uint16(code), payload, c.timeout)
		if lastErr == nil {
			if Code(replyCode) != code && Code(replyCode) != codeAck {
				return nil, gpserr.New(gpserr.KindProtocol, nil, "unexpected reply code %#04x for %s", replyCode, code)
			}
			return replyPayload, nil
		}

		if !isRetryable(lastErr) {
			break
		}
		if attempt >= len(retryBackoff) {
			break
		}
		c.log.Opsf("retrying %s after %v (attempt %d): %v", code, retryBackoff[attempt], attempt+1, lastErr)
		time.Sleep(retryBackoff[attempt])
	}

	return nil, wrapError(lastErr)
}

// isRetryable reports whether an error is transient (packet CRC failure,
// transport timeout) versus a protocol desync that must surface
// immediately and force a session reset.
func isRetryable(err error) bool {
	var crcErr *packet.CRCError
	if errors.As(err, &crcErr) {
		return crcErr.Kind == "packet"
	}
	return errors.Is(err, transport.ErrTimeout)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var crcErr *packet.CRCError
	if errors.As(err, &crcErr) {
		if crcErr.Kind == "message" {
			return gpserr.New(gpserr.KindProtocol, err, "message CRC failed")
		}
		return gpserr.New(gpserr.KindPacket, err, "packet CRC failed after retries")
	}

	var seqErr *packet.SequenceError
	if errors.As(err, &seqErr) {
		return gpserr.New(gpserr.KindPacket, err, "sequence desync, session must be reset")
	}

	var idxErr *packet.IndexError
	if errors.As(err, &idxErr) {
		return gpserr.New(gpserr.KindPacket, err, "packet index gap")
	}

	if errors.Is(err, transport.ErrTimeout) {
		return gpserr.New(gpserr.KindTransport, err, "read timed out after retries")
	}

	var transportErr *transport.Error
	if errors.As(err, &transportErr) {
		return gpserr.New(gpserr.KindTransport, err, transportErr.Error())
	}

	return gpserr.New(gpserr.KindProtocol, err, err.Error())
}

// checkDeviceStatus interprets the one-byte device status prefix some
// replies carry; non-zero maps to a DeviceError.
func checkDeviceStatus(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, gpserr.New(gpserr.KindProtocol, nil, "empty reply, expected status prefix")
	}
	status := payload[0]
	if status != 0 {
		return nil, gpserr.New(gpserr.KindDevice, nil, "device reported status %#02x", status)
	}
	return payload[1:], nil
}

// DeviceInfo is the DeviceInfo reply body.
type DeviceInfo struct {
	Model             string
	Serial            string
	FirmwareVersion   string
	HardwareVersion   string
	BootloaderVersion string
}

// DeviceInfo issues the DeviceInfo command (empty request body).
func (c *Client) DeviceInfo() (*DeviceInfo, error) {
	payload, err := c.exchange(CodeDeviceInfo, nil)
	if err != nil {
		return nil, err
	}

	body, err := checkDeviceStatus(payload)
	if err != nil {
		return nil, err
	}

	return decodeDeviceInfo(body)
}

func decodeDeviceInfo(body []byte) (*DeviceInfo, error) {
	fields, err := splitNulTerminated(body, 5)
	if err != nil {
		return nil, gpserr.New(gpserr.KindProtocol, err, "malformed DeviceInfo reply")
	}
	return &DeviceInfo{
		Model:             fields[0],
		Serial:            fields[1],
		FirmwareVersion:   fields[2],
		HardwareVersion:   fields[3],
		BootloaderVersion: fields[4],
	}, nil
}

// DeviceStatus is the DeviceStatus reply body.
type DeviceStatus struct {
	BatteryChargePercent uint8
}

// DeviceStatus issues the DeviceStatus command (empty request body).
func (c *Client) DeviceStatus() (*DeviceStatus, error) {
	payload, err := c.exchange(CodeDeviceStatus, nil)
	if err != nil {
		return nil, err
	}

	body, err := checkDeviceStatus(payload)
	if err != nil {
		return nil, err
	}
	if len(body) < 1 {
		return nil, gpserr.New(gpserr.KindProtocol, nil, "malformed DeviceStatus reply")
	}

	return &DeviceStatus{BatteryChargePercent: body[0]}, nil
}

// SettingsBlobSize is the size of the opaque settings blob.
const SettingsBlobSize = 2048

// ReadSettings issues the ReadSettings command, returning the 2 KB
// opaque settings blob.
func (c *Client) ReadSettings() ([]byte, error) {
	payload, err := c.exchange(CodeReadSettings, nil)
	if err != nil {
		return nil, err
	}
	body, err := checkDeviceStatus(payload)
	if err != nil {
		return nil, err
	}
	if len(body) != SettingsBlobSize {
		return nil, gpserr.New(gpserr.KindProtocol, nil, "settings blob is %d bytes, expected %d", len(body), SettingsBlobSize)
	}
	return body, nil
}

// WriteSetting writes length bytes at offset within the settings blob.
// Not idempotent per se, but repeated writes of identical values are safe.
func (c *Client) WriteSetting(offset uint32, data []byte) error {
	req := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint32(req[0:4], offset)
	binary.LittleEndian.PutUint32(req[4:8], uint32(len(data)))
	copy(req[8:], data)

	payload, err := c.exchange(CodeWriteSetting, req)
	if err != nil {
		return err
	}
	_, err = checkDeviceStatus(payload)
	return err
}

// ReadMemory issues a timed ReadMemory command for length bytes at the
// given PMEM offset.
func (c *Client) ReadMemory(offset uint32, length uint32) ([]byte, error) {
	req := make([]byte, 8)
	binary.LittleEndian.PutUint32(req[0:4], offset)
	binary.LittleEndian.PutUint32(req[4:8], length)

	payload, err := c.exchange(CodeReadMemory, req)
	if err != nil {
		return nil, err
	}
	body, err := checkDeviceStatus(payload)
	if err != nil {
		return nil, err
	}
	if uint32(len(body)) != length {
		return nil, gpserr.New(gpserr.KindProtocol, nil, "ReadMemory returned %d bytes, requested %d", len(body), length)
	}
	if c.sleepMinSize > 0 && len(body) >= c.sleepMinSize {
		time.Sleep(c.sleepDuration)
	}
	return body, nil
}

// FileEntry is one directory entry from ListFiles.
type FileEntry struct {
	Name string
	Size uint32
}

// ListFiles enumerates the device's file directory, paginating
// repeated ListFiles requests until the device reports no entries left.
func (c *Client) ListFiles() ([]FileEntry, error) {
	var entries []FileEntry
	page := uint32(0)

	for {
		req := make([]byte, 4)
		binary.LittleEndian.PutUint32(req, page)

		payload, err := c.exchange(CodeListFiles, req)
		if err != nil {
			return nil, err
		}
		body, err := checkDeviceStatus(payload)
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			break
		}

		pageEntries, err := decodeFileEntries(body)
		if err != nil {
			return nil, err
		}
		entries = append(entries, pageEntries...)
		page++
	}

	return entries, nil
}

func decodeFileEntries(body []byte) ([]FileEntry, error) {
	var entries []FileEntry
	for len(body) > 0 {
		if len(body) < 4 {
			return nil, gpserr.New(gpserr.KindProtocol, nil, "truncated ListFiles entry")
		}
		nameLen := int(body[0])
		if len(body) < 1+nameLen+4 {
			return nil, gpserr.New(gpserr.KindProtocol, nil, "truncated ListFiles entry name/size")
		}
		name := string(body[1 : 1+nameLen])
		size := binary.LittleEndian.Uint32(body[1+nameLen : 1+nameLen+4])
		entries = append(entries, FileEntry{Name: name, Size: size})
		body = body[1+nameLen+4:]
	}
	return entries, nil
}

// splitNulTerminated splits body into exactly n NUL-terminated fields.
func splitNulTerminated(body []byte, n int) ([]string, error) {
	fields := make([]string, 0, n)
	start := 0
	for i := 0; i < len(body) && len(fields) < n; i++ {
		if body[i] == 0 {
			fields = append(fields, string(body[start:i]))
			start = i + 1
		}
	}
	if len(fields) != n {
		return nil, fmt.Errorf("expected %d NUL-terminated fields, got %d", n, len(fields))
	}
	return fields, nil
}
