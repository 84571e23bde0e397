package output

import (
	"context"
	"errors"
	"strings"
)

// MaxChannels is the size of one DMX universe.
const MaxChannels = 512

var (
	// ErrUnsupportedKind is returned for an unknown output type tag.
	ErrUnsupportedKind = errors.New("unsupported output type")
	// ErrNotOpen is returned when a frame is sent to a closed output.
	ErrNotOpen = errors.New("output is not open")
)

// Kind is the discriminant of an output variant.
type Kind int

const (
	KindDDP Kind = iota + 1
	KindE131
	KindArtNet
	KindDMX
	KindOpenDMX
)

var kindNames = map[Kind]string{
	KindDDP:     "DDP",
	KindE131:    "E131",
	KindArtNet:  "ArtNet",
	KindDMX:     "DMX",
	KindOpenDMX: "OpenDMX",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// HasUniverse reports whether the protocol addresses data by universe number.
func (k Kind) HasUniverse() bool {
	return k == KindE131 || k == KindArtNet
}

// ParseKind matches a type tag case-insensitively.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, ErrUnsupportedKind
}

// Config описывает выход: общие поля и поля конкретного протокола.
type Config struct {
	Kind         Kind
	IP           string // IP - адрес получателя или имя последовательного порта.
	StartChannel uint32 // StartChannel - первый канал буфера, 1..512.
	Channels     uint32 // Channels - количество каналов.

	PacketSize   uint32 // DDP, E131, ArtNet.
	Universe     uint32 // E131, ArtNet.
	BaudRate     int    // DMX, OpenDMX.
	KeepChannels bool   // DDP.
}

// window returns the part of frame this output transmits.
func (c Config) window(frame []byte) []byte {
	start := int(c.StartChannel) - 1
	if start < 0 {
		start = 0
	}
	if start > len(frame) {
		return nil
	}
	end := start + int(c.Channels)
	if end > len(frame) {
		end = len(frame)
	}
	return frame[start:end]
}

// Output is a transport that transmits channel frames.
type Output interface {
	Name() string
	Config() Config
	Open() error
	Close() error
	// OutputFrame sends one frame; ctx bounds the write.
	OutputFrame(ctx context.Context, frame []byte) error
}

// chunks splits data into pieces of at most size bytes.
func chunks(data []byte, size int) [][]byte {
	if size <= 0 {
		size = MaxChannels
	}
	var out [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

// universeCount is the number of PacketSize-wide universes covering Channels.
func universeCount(c Config) int {
	size := int(c.PacketSize)
	if size <= 0 {
		size = MaxChannels
	}
	return (int(c.Channels) + size - 1) / size
}
