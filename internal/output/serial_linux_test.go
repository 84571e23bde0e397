//go:build linux
// +build linux

package output

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/pkg/term/termios"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func openPty(t *testing.T) (ptm, pts *os.File) {
	t.Helper()
	ptm, pts, err := termios.Pty()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	t.Cleanup(func() {
		pts.Close()
		ptm.Close()
	})
	return ptm, pts
}

func lineSettings(t *testing.T, pts *os.File) *unix.Termios {
	t.Helper()
	tio, err := unix.IoctlGetTermios(int(pts.Fd()), unix.TCGETS2)
	require.NoError(t, err)
	return tio
}

func TestOpenDeviceSetsDMXLine(t *testing.T) {
	_, pts := openPty(t)

	port, err := openDevice(pts.Name(), serialBaudRate)
	require.NoError(t, err)
	defer port.Close()

	tio := lineSettings(t, pts)
	assert.Equal(t, uint32(250000), tio.Ospeed)
	assert.Equal(t, uint32(unix.BOTHER), tio.Cflag&unix.CBAUD)
	assert.NotZero(t, tio.Cflag&unix.CSTOPB, "two stop bits")
	assert.Equal(t, uint32(unix.CS8), tio.Cflag&unix.CSIZE)
	assert.Zero(t, tio.Cflag&unix.PARENB)
	assert.Zero(t, tio.Oflag&unix.OPOST)
}

func TestSerialFrameOnPty(t *testing.T) {
	ptm, pts := openPty(t)

	cfg, err := NewConfig(KindDMX, pts.Name(), 1, 1, 4)
	require.NoError(t, err)
	out, err := New(cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, out.Open())
	defer out.Close()

	require.NoError(t, out.OutputFrame(context.Background(), testFrame()))

	// the rate is still 250000 after a break and a frame
	assert.Equal(t, uint32(250000), lineSettings(t, pts).Ospeed)

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 5)
		if _, err := io.ReadFull(ptm, buf); err == nil {
			got <- buf
		}
	}()
	select {
	case b := <-got:
		assert.Equal(t, []byte{dmxStartCode, 1, 2, 3, 4}, b)
	case <-time.After(2 * time.Second):
		t.Fatal("frame was not written")
	}
}

func TestCheckLine(t *testing.T) {
	tio := &unix.Termios{}
	makeRawDMX(tio, 250000)
	assert.NoError(t, checkLine(tio, 250000))

	slow := *tio
	slow.Ospeed = 38400
	assert.Error(t, checkLine(&slow, 250000))

	oneStop := *tio
	oneStop.Cflag &^= unix.CSTOPB
	assert.Error(t, checkLine(&oneStop, 250000))
}

func TestOpenDeviceMissing(t *testing.T) {
	_, err := openDevice("/dev/does-not-exist-dmx", serialBaudRate)
	assert.Error(t, err)
}
