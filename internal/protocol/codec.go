package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedPacket reports a structurally invalid packet: too short,
// wrong magic cookie, or an unexpected message type. Receivers drop such
// packets and keep listening; decoding never returns a partial result.
var ErrMalformedPacket = errors.New("malformed packet")

// All integers are big-endian on the wire.

// EncodeOffer serializes an Offer into its 9-byte wire form.
func EncodeOffer(o *Offer) []byte {
	buf := make([]byte, OfferSize)
	binary.BigEndian.PutUint32(buf[0:4], MagicCookie)
	buf[4] = TypeOffer
	binary.BigEndian.PutUint16(buf[5:7], o.UDPPort)
	binary.BigEndian.PutUint16(buf[7:9], o.TCPPort)
	return buf
}

// DecodeOffer deserializes a 9-byte datagram into an Offer.
func DecodeOffer(data []byte) (*Offer, error) {
	if err := checkHeader(data, OfferSize, TypeOffer); err != nil {
		return nil, err
	}
	return &Offer{
		UDPPort: binary.BigEndian.Uint16(data[5:7]),
		TCPPort: binary.BigEndian.Uint16(data[7:9]),
	}, nil
}

// EncodeRequest serializes a Request into its 13-byte wire form.
func EncodeRequest(r *Request) []byte {
	buf := make([]byte, RequestSize)
	binary.BigEndian.PutUint32(buf[0:4], MagicCookie)
	buf[4] = TypeRequest
	binary.BigEndian.PutUint64(buf[5:13], r.FileSize)
	return buf
}

// DecodeRequest deserializes a 13-byte datagram into a Request.
func DecodeRequest(data []byte) (*Request, error) {
	if err := checkHeader(data, RequestSize, TypeRequest); err != nil {
		return nil, err
	}
	return &Request{
		FileSize: binary.BigEndian.Uint64(data[5:13]),
	}, nil
}

// EncodePayload serializes a Payload into its 21-byte header followed by
// the segment data.
func EncodePayload(p *Payload) []byte {
	buf := make([]byte, PayloadHeaderSize+len(p.Data))
	binary.BigEndian.PutUint32(buf[0:4], MagicCookie)
	buf[4] = TypePayload
	binary.BigEndian.PutUint64(buf[5:13], p.TotalSegments)
	binary.BigEndian.PutUint64(buf[13:21], p.CurrentSegment)
	copy(buf[PayloadHeaderSize:], p.Data)
	return buf
}

// DecodePayload deserializes a datagram into a Payload. The data part may
// be any length, including empty; it is copied, never aliased to the input.
func DecodePayload(data []byte) (*Payload, error) {
	if err := checkHeader(data, PayloadHeaderSize, TypePayload); err != nil {
		return nil, err
	}
	p := &Payload{
		TotalSegments:  binary.BigEndian.Uint64(data[5:13]),
		CurrentSegment: binary.BigEndian.Uint64(data[13:21]),
	}
	if len(data) > PayloadHeaderSize {
		p.Data = make([]byte, len(data)-PayloadHeaderSize)
		copy(p.Data, data[PayloadHeaderSize:])
	}
	return p, nil
}

// checkHeader validates the common cookie+type prefix and the minimum
// length for one packet kind.
func checkHeader(data []byte, minSize int, wantType uint8) error {
	if len(data) < minSize {
		return fmt.Errorf("%w: %d bytes (need at least %d)", ErrMalformedPacket, len(data), minSize)
	}
	if cookie := binary.BigEndian.Uint32(data[0:4]); cookie != MagicCookie {
		return fmt.Errorf("%w: bad magic cookie 0x%08x", ErrMalformedPacket, cookie)
	}
	if data[4] != wantType {
		return fmt.Errorf("%w: unexpected message type 0x%x (want 0x%x)", ErrMalformedPacket, data[4], wantType)
	}
	return nil
}
