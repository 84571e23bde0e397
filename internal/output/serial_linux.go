//go:build linux
// +build linux

package output

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ttyPort is a serial line configured through termios2, which accepts
// arbitrary rates such as the 250000 baud of DMX512.
type ttyPort struct {
	f  *os.File
	fd int
}

func openDevice(device string, baud int) (serialPort, error) {
	f, err := os.OpenFile(device, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}
	p := &ttyPort{f: f, fd: int(f.Fd())}
	if err := p.configure(baud); err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

func (p *ttyPort) configure(baud int) error {
	t, err := unix.IoctlGetTermios(p.fd, unix.TCGETS2)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	makeRawDMX(t, baud)
	if err := unix.IoctlSetTermios(p.fd, unix.TCSETS2, t); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}

	// drivers may silently keep the old rate
	got, err := unix.IoctlGetTermios(p.fd, unix.TCGETS2)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	return checkLine(got, baud)
}

// makeRawDMX sets raw mode, 8 data bits, no parity, 2 stop bits and a
// custom rate.
func makeRawDMX(t *unix.Termios, baud int) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN

	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CRTSCTS | unix.CBAUD | unix.CIBAUD
	t.Cflag |= unix.CS8 | unix.CSTOPB | unix.CLOCAL | unix.CREAD | unix.BOTHER
	// CIBAUD cleared: input rate follows the output rate.
	t.Ispeed = uint32(baud)
	t.Ospeed = uint32(baud)

	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
}

func checkLine(t *unix.Termios, baud int) error {
	if t.Ospeed != uint32(baud) {
		return fmt.Errorf("line speed is %d, want %d", t.Ospeed, baud)
	}
	if t.Cflag&unix.CSTOPB == 0 {
		return fmt.Errorf("two stop bits were not accepted")
	}
	if t.Cflag&unix.CSIZE != unix.CS8 {
		return fmt.Errorf("8 data bits were not accepted")
	}
	return nil
}

func (p *ttyPort) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

func (p *ttyPort) Close() error {
	return p.f.Close()
}

// Drain is tcdrain: TCSBRK with a non-zero argument waits without a break.
func (p *ttyPort) Drain() error {
	return unix.IoctlSetInt(p.fd, unix.TCSBRK, 1)
}

func (p *ttyPort) Break(d time.Duration) error {
	if err := unix.IoctlSetInt(p.fd, unix.TIOCSBRK, 0); err != nil {
		return err
	}
	time.Sleep(d)
	return unix.IoctlSetInt(p.fd, unix.TIOCCBRK, 0)
}
