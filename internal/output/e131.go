package output

import (
	"context"
	"fmt"
	"net"
	"strings"

	"dmxout/internal/logger"
	"github.com/Hundemeier/go-sacn/sacn/packet"
	"github.com/google/uuid"
)

const (
	e131Port = 5568
	// e131HeaderSize is the offset of the first slot in a data packet.
	e131HeaderSize = 126
)

// E131 sends frames as sACN (ANSI E1.31) data packets.
type E131 struct {
	cfg       Config
	log       *logger.Log
	sender    udpSender
	cid       uuid.UUID
	addrs     []*net.UDPAddr
	sequences []uint8
}

func newE131(cfg Config, log *logger.Log, localIP net.IP) *E131 {
	return &E131{cfg: cfg, log: log, sender: udpSender{localIP: localIP}, cid: uuid.New()}
}

func (e *E131) Name() string   { return KindE131.String() }
func (e *E131) Config() Config { return e.cfg }

func (e *E131) universes() int {
	return universeCount(e.cfg)
}

func (e *E131) Open() error {
	n := e.universes()
	addrs := make([]*net.UDPAddr, 0, n)
	for i := 0; i < n; i++ {
		universe := uint16(e.cfg.Universe) + uint16(i)
		var (
			addr *net.UDPAddr
			err  error
		)
		if isMulticast(e.cfg.IP) {
			addr, err = resolveTarget(multicastAddress(universe), e131Port)
		} else {
			addr, err = resolveTarget(e.cfg.IP, e131Port)
		}
		if err != nil {
			return err
		}
		addrs = append(addrs, addr)
	}
	if err := e.sender.open(); err != nil {
		return err
	}
	e.addrs = addrs
	e.sequences = make([]uint8, n)
	e.log.Infof("E1.31 output opened: %d universe(s) from %d", n, e.cfg.Universe)
	return nil
}

func (e *E131) Close() error {
	return e.sender.close()
}

func (e *E131) OutputFrame(ctx context.Context, frame []byte) error {
	if e.sender.conn == nil {
		return ErrNotOpen
	}
	data := e.cfg.window(frame)
	for i, part := range chunks(data, int(e.cfg.PacketSize)) {
		if i >= len(e.addrs) {
			break
		}
		e.sequences[i]++
		pkt, err := e131Packet(e.cid, uint16(e.cfg.Universe)+uint16(i), e.sequences[i], part)
		if err != nil {
			return err
		}
		if err := e.sender.send(ctx, e.addrs[i], pkt); err != nil {
			return err
		}
	}
	return nil
}

func isMulticast(ip string) bool {
	return ip == "" || strings.EqualFold(ip, "multicast")
}

// multicastAddress returns 239.255.hi.lo for universe.
func multicastAddress(universe uint16) string {
	return fmt.Sprintf("239.255.%d.%d", universe>>8, universe&0xff)
}

func e131Packet(cid uuid.UUID, universe uint16, sequence uint8, data []byte) ([]byte, error) {
	p := packet.NewDataPacket()
	p.SetCID(cid)
	p.SetUniverse(universe)
	p.SetSequence(sequence)
	p.SetData(data)
	b, err := p.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode E1.31 universe %d: %w", universe, err)
	}
	return b, nil
}
