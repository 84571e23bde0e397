package output

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// udpSender owns an unconnected UDP socket shared by the network outputs.
type udpSender struct {
	localIP net.IP
	conn    *net.UDPConn
}

func (u *udpSender) open() error {
	if u.conn != nil {
		return nil
	}
	laddr := &net.UDPAddr{}
	if u.localIP != nil {
		laddr.IP = u.localIP
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return fmt.Errorf("failed to open UDP socket: %w", err)
	}
	u.conn = conn
	return nil
}

func (u *udpSender) close() error {
	if u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.conn = nil
	return err
}

func (u *udpSender) send(ctx context.Context, addr *net.UDPAddr, packet []byte) error {
	if u.conn == nil {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// zero deadline clears a previous one
	deadline, _ := ctx.Deadline()
	if err := u.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if _, err := u.conn.WriteToUDP(packet, addr); err != nil {
		return fmt.Errorf("failed to send to %s: %w", addr, err)
	}
	return nil
}

// resolveTarget accepts "host" or "host:port"; a missing port means defaultPort.
func resolveTarget(target string, defaultPort int) (*net.UDPAddr, error) {
	hostport := target
	if _, _, err := net.SplitHostPort(target); err != nil {
		hostport = net.JoinHostPort(target, strconv.Itoa(defaultPort))
	}
	addr, err := net.ResolveUDPAddr("udp4", hostport)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", target, err)
	}
	return addr, nil
}
