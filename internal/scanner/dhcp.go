package scanner

import (
	"crypto/rand"
	"net"
	"strconv"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
)

const (
	dhcpClientPort   = 68
	dhcpServerPort   = 67
	dhcpReadAttempts = 3
	dhcpReadTimeout  = 2 * time.Second
)

// probeDHCP sends a DHCPDISCOVER to the subnet's broadcast address and
// listens for an OFFER or ACK matching the transaction it started; if
// broadcast draws no response, it retries unicast straight at ip (spec.md
// §4.1 "67 (DHCP)"). Called only for gateways unless the DHCP policy
// allows probing every host (see probeUDPPort).
func probeDHCP(ip, subnetCIDR string) bool {
	mac, err := randomMAC()
	if err != nil {
		return false
	}
	xid, err := dhcpv4.GenerateTransactionID()
	if err != nil {
		return false
	}

	discover, err := dhcpv4.NewDiscovery(mac)
	if err != nil {
		return false
	}
	discover.TransactionID = xid

	conn, err := bindDHCPSocket()
	if err != nil {
		return false
	}
	defer conn.Close()

	broadcast := &net.UDPAddr{IP: subnetBroadcastAddr(subnetCIDR, ip), Port: dhcpServerPort}
	unicast := &net.UDPAddr{IP: net.ParseIP(ip), Port: dhcpServerPort}

	payload := discover.ToBytes()
	if _, err := conn.WriteTo(payload, broadcast); err != nil {
		return false
	}

	if waitForDHCPReply(conn, ip, xid) {
		return true
	}

	if _, err := conn.WriteTo(payload, unicast); err != nil {
		return false
	}
	return waitForDHCPReply(conn, ip, xid)
}

// waitForDHCPReply reads up to dhcpReadAttempts packets, each bounded by
// dhcpReadTimeout, accepting only a reply that originates from ip, carries
// the matching transaction id, and is an OFFER or ACK.
func waitForDHCPReply(conn net.PacketConn, ip string, xid dhcpv4.TransactionID) bool {
	buf := make([]byte, 1500)
	for attempt := 0; attempt < dhcpReadAttempts; attempt++ {
		conn.SetReadDeadline(time.Now().Add(dhcpReadTimeout))
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			continue
		}

		udpFrom, ok := from.(*net.UDPAddr)
		if !ok || udpFrom.IP.String() != ip {
			continue
		}

		resp, err := dhcpv4.FromBytes(buf[:n])
		if err != nil {
			continue
		}
		if resp.TransactionID != xid {
			continue
		}

		mt := resp.MessageType()
		if mt == dhcpv4.MessageTypeOffer || mt == dhcpv4.MessageTypeAck {
			return true
		}
	}
	return false
}

// subnetBroadcastAddr computes the IPv4 broadcast address of cidr (the
// last address in the block, per the original scanner's cidr.last_address
// semantics). Falls back to the global broadcast address if cidr doesn't
// parse, so a malformed/missing subnet never blocks the probe outright.
func subnetBroadcastAddr(cidr, fallbackIP string) net.IP {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return net.IPv4bcast
	}
	ip4 := ipNet.IP.To4()
	mask := ipNet.Mask
	if ip4 == nil || len(mask) != net.IPv4len {
		return net.IPv4bcast
	}

	bcast := make(net.IP, net.IPv4len)
	for i := range ip4 {
		bcast[i] = ip4[i] | ^mask[i]
	}
	return bcast
}

// bindDHCPSocket binds the conventional client port 68 with broadcast
// enabled; if that's not permitted (no root), it falls back to an
// ephemeral port, which still receives unicast replies.
func bindDHCPSocket() (net.PacketConn, error) {
	conn, err := net.ListenPacket("udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(dhcpClientPort)))
	if err == nil {
		return conn, nil
	}
	return net.ListenPacket("udp4", "0.0.0.0:0")
}

func randomMAC() (net.HardwareAddr, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	buf[0] = (buf[0] | 0x02) & 0xfe // locally administered, unicast
	return net.HardwareAddr(buf), nil
}
