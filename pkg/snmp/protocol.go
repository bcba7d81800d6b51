package snmp

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1codec"
)

type protocol struct {
	community      string
	version        int64
	bufferSize     int
	receiveTimeout time.Duration
	codec          *asn1codec.Codec
	log            *slog.Logger
}

type ProtocolOption func(p *protocol) error

func NewProtocol(options ...ProtocolOption) (Protocol, error) {
	p := &protocol{
		version:        -1,
		bufferSize:     4096,
		receiveTimeout: 2 * time.Second,
	}
	for _, option := range options {
		err := option(p)
		if err != nil {
			return nil, err
		}
	}
	if p.version == -1 {
		return nil, fmt.Errorf("version is required")
	}
	p.codec = NewCodec(p.log, uint64(p.bufferSize))
	return p, nil
}

func (p *protocol) Dial(address string) (Connection, error) {
	host, port := address, "161"
	if h, pt, err := net.SplitHostPort(address); err == nil {
		host, port = h, pt
	}
	if _, err := strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("invalid port: %v", err)
	}
	udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s: %v", address, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s : %v", udpAddr, err)
	}

	return &connection{protocol: p, conn: conn}, nil
}

func (p *protocol) DecodeFrame(frame []byte) (*Message, error) {
	message, err := decodeWith(p.codec, frame)
	if err != nil {
		return nil, fmt.Errorf("error decoding SNMP message: %w", err)
	}
	return message, nil
}

func (p *protocol) EncodePDU(pType PDUType, pdu *PDU) ([]byte, error) {
	msg := Message{
		Version:   p.version,
		Community: p.community,
		PDU:       *pdu,
	}
	msg.PDU.Type = pType
	bytes, err := encodeWith(p.codec, &msg)
	if err != nil {
		return nil, fmt.Errorf("error encoding SNMP message: %w", err)
	}
	return bytes, nil
}

func WithV1(community string) ProtocolOption {
	return func(p *protocol) error {
		p.community = community
		p.version = V1
		return nil
	}
}

func WithV2(community string) ProtocolOption {
	return func(p *protocol) error {
		p.community = community
		p.version = V2C
		return nil
	}
}

func WithBufferSize(size int) ProtocolOption {
	return func(p *protocol) error {
		if size < 484 {
			return fmt.Errorf("buffer size %d is below the SNMP minimum of 484", size)
		}
		p.bufferSize = size
		return nil
	}
}

func WithReceiveTimeout(timeout time.Duration) ProtocolOption {
	return func(p *protocol) error {
		p.receiveTimeout = timeout
		return nil
	}
}

// WithLogger sends the codec's unknown content events to log.
func WithLogger(log *slog.Logger) ProtocolOption {
	return func(p *protocol) error {
		p.log = log
		return nil
	}
}
