package output

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"dmxout/internal/logger"
	"github.com/Haba1234/go-artnet"
	"github.com/Haba1234/go-artnet/packet"
)

const artNetPort = 6454

// ArtNet is transport for the ArtNet protocol (DMX over UDP/IP).
type ArtNet struct {
	cfg      Config
	log      *logger.Log
	sender   udpSender
	addr     *net.UDPAddr
	sequence uint8
}

func newArtNet(cfg Config, log *logger.Log, localIP net.IP) *ArtNet {
	return &ArtNet{cfg: cfg, log: log, sender: udpSender{localIP: localIP}}
}

func (a *ArtNet) Name() string   { return KindArtNet.String() }
func (a *ArtNet) Config() Config { return a.cfg }

func (a *ArtNet) Open() error {
	addr, err := resolveTarget(a.cfg.IP, artNetPort)
	if err != nil {
		return err
	}
	if err := a.sender.open(); err != nil {
		return err
	}
	a.addr = addr
	a.log.Infof("Using ArtNet node %s, universe %d", addr, a.cfg.Universe)
	return nil
}

func (a *ArtNet) Close() error {
	return a.sender.close()
}

func (a *ArtNet) OutputFrame(ctx context.Context, frame []byte) error {
	data := a.cfg.window(frame)
	// 0 означает, что узел не отслеживает последовательность.
	a.sequence++
	if a.sequence == 0 {
		a.sequence = 1
	}
	for i, part := range chunks(data, int(a.cfg.PacketSize)) {
		pkt, err := artDMXPacket(uint16(a.cfg.Universe)+uint16(i), a.sequence, part)
		if err != nil {
			return err
		}
		if err := a.sender.send(ctx, a.addr, pkt); err != nil {
			return err
		}
	}
	return nil
}

func artDMXPacket(universe uint16, sequence uint8, data []byte) ([]byte, error) {
	addr := universeToAddress(universe)
	p := packet.NewArtDMXPacket()
	p.Sequence = sequence
	p.Net = addr.Net
	p.SubUni = addr.SubUni
	// Length must be even.
	p.Length = uint16(len(data) + len(data)%2)
	copy(p.Data[:], data)
	b, err := p.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode ArtDMX: %w", err)
	}
	return b, nil
}

// universeToAddress converts a dmx universe to art-net address
// universe: старший байт - Net, младший байт - SubUni.
func universeToAddress(universe uint16) artnet.Address {
	v := make([]uint8, 2)
	binary.BigEndian.PutUint16(v, universe)

	return artnet.Address{
		Net:    v[0] & 0x7f,
		SubUni: v[1],
	}
}
