package output

import (
	"context"
	"fmt"
	"io"
	"time"

	"dmxout/internal/logger"
)

const (
	dmxStartCode = 0x00

	dmxBreak          = 176 * time.Microsecond
	dmxMarkAfterBreak = 12 * time.Microsecond
)

type serialPort interface {
	io.WriteCloser
	// Drain blocks until everything written has been transmitted.
	Drain() error
	// Break holds the line low for d.
	Break(d time.Duration) error
}

// Serial sends frames as raw DMX512 (8N2) over a serial line. DMX sends the
// configured channel count, OpenDMX always a full universe.
type Serial struct {
	cfg  Config
	log  *logger.Log
	open func(device string, baud int) (serialPort, error)
	port serialPort
	buf  []byte
}

func newSerial(cfg Config, log *logger.Log) *Serial {
	return &Serial{cfg: cfg, log: log, open: openDevice}
}

func (s *Serial) Name() string   { return s.cfg.Kind.String() }
func (s *Serial) Config() Config { return s.cfg }

func (s *Serial) Open() error {
	if s.port != nil {
		return nil
	}
	port, err := s.open(s.cfg.IP, s.cfg.BaudRate)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.cfg.IP, err)
	}
	s.port = port
	s.log.Infof("serial port %s opened at %d baud", s.cfg.IP, s.cfg.BaudRate)
	return nil
}

func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *Serial) slots(frame []byte) []byte {
	data := s.cfg.window(frame)
	if s.cfg.Kind != KindOpenDMX {
		return data
	}
	full := make([]byte, MaxChannels)
	copy(full, data)
	return full
}

func (s *Serial) OutputFrame(ctx context.Context, frame []byte) error {
	if s.port == nil {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	slots := s.slots(frame)
	s.buf = append(s.buf[:0], dmxStartCode)
	s.buf = append(s.buf, slots...)

	// the break must not cut into the previous frame
	if err := s.port.Drain(); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	if err := s.port.Break(dmxBreak); err != nil {
		return fmt.Errorf("break: %w", err)
	}
	time.Sleep(dmxMarkAfterBreak)
	if _, err := s.port.Write(s.buf); err != nil {
		return fmt.Errorf("failed to write frame to %s: %w", s.cfg.IP, err)
	}
	return nil
}
