package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/davidjspooner/asn1rt/pkg/snmp"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var ErrReassemblyNeeded = errors.New("reassembly needed")

type IPFrame struct {
	FrameNumber uint64
	IsFragment  bool
	IPProtocol  uint8
	SrcAddr     net.IPAddr
	DstAddr     net.IPAddr
	SrcPort     uint16
	DstPort     uint16
	Data        []byte
}

type IPFrameHandler interface {
	HandleIPFrame(frame *IPFrame) error
}

type IPFrameHandleFunc func(frame *IPFrame) error

func (f IPFrameHandleFunc) HandleIPFrame(frame *IPFrame) error {
	return f(frame)
}

func PlaybackIpFramesFromFile(filename string, handler IPFrameHandler) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return PlaybackIpFramesFromStream(f, handler)
}

// PlaybackIpFramesFromStream passes every UDP payload of a pcap stream to handler.
func PlaybackIpFramesFromStream(f io.Reader, handler IPFrameHandler) error {
	r, err := pcapgo.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to create pcap reader: %w", err)
	}

	packetSource := gopacket.NewPacketSource(r, r.LinkType())
	ipFrame := &IPFrame{}
	for packet := range packetSource.Packets() {
		ipFrame.FrameNumber++
		if ipV4 := packet.Layer(layers.LayerTypeIPv4); ipV4 != nil {
			ip := ipV4.(*layers.IPv4)
			ipFrame.IsFragment = ip.Flags&layers.IPv4MoreFragments != 0 || ip.FragOffset != 0
			ipFrame.IPProtocol = uint8(ip.Protocol)
			ipFrame.SrcAddr = net.IPAddr{IP: ip.SrcIP}
			ipFrame.DstAddr = net.IPAddr{IP: ip.DstIP}
		} else if ipV6 := packet.Layer(layers.LayerTypeIPv6); ipV6 != nil {
			ip := ipV6.(*layers.IPv6)
			ipFrame.IsFragment = false
			ipFrame.IPProtocol = uint8(ip.NextHeader)
			ipFrame.SrcAddr = net.IPAddr{IP: ip.SrcIP}
			ipFrame.DstAddr = net.IPAddr{IP: ip.DstIP}
		} else {
			continue
		}
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			continue
		}
		ipFrame.SrcPort = uint16(udp.SrcPort)
		ipFrame.DstPort = uint16(udp.DstPort)
		ipFrame.Data = udp.Payload

		if err := handler.HandleIPFrame(ipFrame); err != nil {
			return fmt.Errorf("failed to handle IP frame %d: %w", ipFrame.FrameNumber, err)
		}
	}

	return nil
}

func runReplay(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	pcapPath := fs.String("pcap", "", "capture file")
	port := fs.Int("port", 161, "SNMP UDP port")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pcapPath == "" {
		return fmt.Errorf("-pcap is required")
	}
	protocol, err := snmp.NewProtocol(snmp.WithV2(""), snmp.WithLogger(e.log))
	if err != nil {
		return err
	}
	printer := snmp.NewPrinter(e.stdout, nil)
	return PlaybackIpFramesFromFile(*pcapPath, IPFrameHandleFunc(func(frame *IPFrame) error {
		if frame.IsFragment {
			return ErrReassemblyNeeded
		}
		if int(frame.SrcPort) != *port && int(frame.DstPort) != *port {
			return nil
		}
		fmt.Fprintf(e.stdout, "Frame: %d Src: %s:%d, Dst: %s:%d\n", frame.FrameNumber, frame.SrcAddr.IP, frame.SrcPort, frame.DstAddr.IP, frame.DstPort)
		message, err := protocol.DecodeFrame(frame.Data)
		if err != nil {
			e.log.Warn("undecodable frame", "frame", frame.FrameNumber, "error", err)
			return nil
		}
		fmt.Fprintf(e.stdout, "      Method: %s\n", message.PDU.Type)
		fmt.Fprintf(e.stdout, "      Community: %s\n", message.Community)
		fmt.Fprintf(e.stdout, "      Version: %d\n", message.Version)
		fmt.Fprintf(e.stdout, "      RequestID: %d\n", message.PDU.RequestID)
		if message.PDU.ErrorStatus > 0 {
			fmt.Fprintf(e.stdout, "      Error: %d\n", message.PDU.ErrorStatus)
		}
		if message.PDU.ErrorIndex > 0 {
			fmt.Fprintf(e.stdout, "      ErrorIndex: %d\n", message.PDU.ErrorIndex)
		}
		return snmp.Dispatch(message, printer)
	}))
}
