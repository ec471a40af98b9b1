package bittorrent

// Compact4PeerLen and Compact6PeerLen are the fixed widths of the BEP
//23/BEP 07 compact peer records: 4/16 bytes of address followed by a
// 2-byte big-endian port.
const (
	Compact4PeerLen = 4 + 2
	Compact6PeerLen = 16 + 2
)

// CompactBytes renders a single peer as its fixed-width compact record. It
// is a free function rather than a method on a capability interface so the
// sampler can partition peers by AddressFamily without any dynamic dispatch.
func CompactBytes(p Peer) []byte {
	var buf []byte
	switch p.IP.AddressFamily {
	case IPv6:
		buf = make([]byte, 0, Compact6PeerLen)
		buf = append(buf, p.IP.To16()...)
	default:
		buf = make([]byte, 0, Compact4PeerLen)
		buf = append(buf, p.IP.To4()...)
	}
	buf = append(buf, byte(p.Port>>8), byte(p.Port&0xff))
	return buf
}

// CompactPeers concatenates the compact records for peers, in encounter
// order, producing the byte-string value used for the "peers"/"peers6" keys
// of an announce response.
func CompactPeers(peers []Peer) []byte {
	if len(peers) == 0 {
		return []byte{}
	}

	width := Compact4PeerLen
	if peers[0].IP.AddressFamily == IPv6 {
		width = Compact6PeerLen
	}

	out := make([]byte, 0, width*len(peers))
	for _, p := range peers {
		out = append(out, CompactBytes(p)...)
	}
	return out
}
