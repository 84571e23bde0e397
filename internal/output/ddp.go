package output

import (
	"context"
	"encoding/binary"
	"net"

	"dmxout/internal/logger"
)

const (
	ddpPort       = 4048
	ddpHeaderSize = 10

	ddpFlagVersion1 = 0x40
	ddpFlagPush     = 0x01
	ddpTypeDefault  = 0x01 // legacy type byte, accepted by xLights and WLED receivers
	ddpIDDisplay    = 0x01
)

// DDP sends frames with the Distributed Display Protocol.
type DDP struct {
	cfg      Config
	log      *logger.Log
	sender   udpSender
	addr     *net.UDPAddr
	sequence uint8
}

func newDDP(cfg Config, log *logger.Log, localIP net.IP) *DDP {
	return &DDP{cfg: cfg, log: log, sender: udpSender{localIP: localIP}}
}

func (d *DDP) Name() string   { return KindDDP.String() }
func (d *DDP) Config() Config { return d.cfg }

func (d *DDP) Open() error {
	addr, err := resolveTarget(d.cfg.IP, ddpPort)
	if err != nil {
		return err
	}
	if err := d.sender.open(); err != nil {
		return err
	}
	d.addr = addr
	d.log.Infof("DDP output to %s opened", addr)
	return nil
}

func (d *DDP) Close() error {
	return d.sender.close()
}

func (d *DDP) OutputFrame(ctx context.Context, frame []byte) error {
	data := d.cfg.window(frame)
	if len(data) == 0 {
		return nil
	}
	d.sequence = d.sequence%15 + 1

	var offset uint32
	if d.cfg.KeepChannels && d.cfg.StartChannel > 0 {
		offset = d.cfg.StartChannel - 1
	}
	parts := chunks(data, int(d.cfg.PacketSize))
	for i, part := range parts {
		pkt := ddpPacket(d.sequence, offset, part, i == len(parts)-1)
		if err := d.sender.send(ctx, d.addr, pkt); err != nil {
			return err
		}
		offset += uint32(len(part))
	}
	return nil
}

func ddpPacket(sequence uint8, offset uint32, data []byte, push bool) []byte {
	pkt := make([]byte, ddpHeaderSize+len(data))
	pkt[0] = ddpFlagVersion1
	if push {
		pkt[0] |= ddpFlagPush
	}
	pkt[1] = sequence & 0x0f
	pkt[2] = ddpTypeDefault
	pkt[3] = ddpIDDisplay
	binary.BigEndian.PutUint32(pkt[4:8], offset)
	binary.BigEndian.PutUint16(pkt[8:10], uint16(len(data)))
	copy(pkt[ddpHeaderSize:], data)
	return pkt
}
