// Package protocol defines the packet formats shared by the speed test
// server and client.
package protocol

// MagicCookie opens every packet of this protocol. Receivers validate it
// before trusting any other field.
const MagicCookie uint32 = 0xabcddcba

// Message type constants.
const (
	TypeOffer   uint8 = 0x2 // Server announcement carrying its data ports
	TypeRequest uint8 = 0x3 // Client transfer request carrying a byte count
	TypePayload uint8 = 0x4 // One segment of a running UDP transfer
)

// Fixed wire sizes. Every packet starts with cookie(4) + type(1).
const (
	OfferSize         = 9  // + udpPort(2) + tcpPort(2)
	RequestSize       = 13 // + fileSize(8)
	PayloadHeaderSize = 21 // + totalSegments(8) + currentSegment(8)
)

// Offer is broadcast by a server once per interval and advertises the
// ports its TCP and UDP responders are bound to.
type Offer struct {
	UDPPort uint16
	TCPPort uint16
}

// Request asks a server to stream FileSize bytes back to the sender.
// The binary form is used on UDP; on TCP the request travels as a
// decimal ASCII line instead.
type Request struct {
	FileSize uint64
}

// Payload is one segment of a UDP transfer. CurrentSegment is 1-based,
// and TotalSegments is identical across all segments of one transfer so
// the receiver can compute its delivery ratio even under loss.
type Payload struct {
	TotalSegments  uint64
	CurrentSegment uint64
	Data           []byte
}

// SegmentCount returns how many segments a transfer of fileSize bytes
// needs when each segment carries at most segmentSize bytes of data.
// Only the final segment may carry less than segmentSize.
func SegmentCount(fileSize, segmentSize uint64) uint64 {
	if segmentSize == 0 {
		return 0
	}
	// Divide before rounding so sizes near the top of the uint64 range
	// cannot wrap.
	n := fileSize / segmentSize
	if fileSize%segmentSize != 0 {
		n++
	}
	return n
}
