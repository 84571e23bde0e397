package output

import (
	"fmt"
	"net"

	"dmxout/internal/logger"
)

const (
	ddpPacketSize  = 1400
	serialBaudRate = 250000
)

// NewConfig fills the variant fields for kind.
func NewConfig(kind Kind, ip string, startUniverse, startChannel, universeSize uint32) (Config, error) {
	cfg := Config{
		Kind:         kind,
		IP:           ip,
		StartChannel: startChannel,
		Channels:     universeSize,
	}
	switch kind {
	case KindDDP:
		cfg.PacketSize = ddpPacketSize
		cfg.KeepChannels = true
	case KindE131, KindArtNet:
		cfg.PacketSize = universeSize
		cfg.Universe = startUniverse
	case KindDMX, KindOpenDMX:
		cfg.BaudRate = serialBaudRate
	default:
		return Config{}, fmt.Errorf("%w: %v", ErrUnsupportedKind, kind)
	}
	return cfg, nil
}

type options struct {
	localIP net.IP
}

// Option настраивает создаваемый выход.
type Option func(*options) error

// WithLocalNetwork binds network outputs to the local address inside cidr.
func WithLocalNetwork(cidr string) Option {
	return func(o *options) error {
		if cidr == "" {
			return nil
		}
		ip, err := FindLocalIP(cidr)
		if err != nil {
			return err
		}
		if ip == nil {
			return fmt.Errorf("failed to find a local IP in %s: No interface found", cidr)
		}
		o.localIP = ip
		return nil
	}
}

// New создаёт выход по конфигурации. Сокеты и порты открываются в Open.
func New(cfg Config, log logger.Logger, opts ...Option) (Output, error) {
	var o options
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	l := log.With(logger.Fields{"module": "output", "type": cfg.Kind.String()})

	switch cfg.Kind {
	case KindDDP:
		return newDDP(cfg, l, o.localIP), nil
	case KindE131:
		return newE131(cfg, l, o.localIP), nil
	case KindArtNet:
		return newArtNet(cfg, l, o.localIP), nil
	case KindDMX, KindOpenDMX:
		return newSerial(cfg, l), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedKind, cfg.Kind)
}
