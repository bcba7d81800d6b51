package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const pointSchema = `
module: Geometry
types:
  - name: Point
    kind: SEQUENCE
    members:
      - {name: x, type: {kind: INTEGER, value: {min: 0, max: 255}}}
      - {name: y, type: {kind: INTEGER, value: {min: 0, max: 255}}}
`

func writeSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "point.yaml")
	if err := os.WriteFile(path, []byte(pointSchema), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runTool(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func TestCommands(t *testing.T) {
	schema := writeSchema(t)
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"encode der", `{"x":1,"y":2}`, []string{"encode", "-type", "Point", "-rule", "der", "-hex"}, "30 06 02 01 01 02 01 02\n"},
		{"encode uper", `{"x":1,"y":2}`, []string{"encode", "-type", "Point", "-rule", "uper", "-hex"}, "01 02\n"},
		{"decode", "30 06 02 01 01 02 01 02", []string{"decode", "-type", "Point", "-rule", "ber", "-hex"}, "{\"x\":1,\"y\":2}\n"},
		{"transcode", "30 06 02 01 01 02 01 02", []string{"transcode", "-type", "Point", "-from", "ber", "-to", "oer", "-hex"}, "01 02\n"},
		{"transcode to jer", "01 02", []string{"transcode", "-type", "Point", "-from", "aper", "-to", "jer", "-hex"}, "{\"x\":1,\"y\":2}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runTool(t, tt.stdin, append([]string{"-schema", schema}, tt.args...)...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrace(t *testing.T) {
	got, err := runTool(t, "30 06 02 01 01 02 01 02", "-schema", writeSchema(t), "trace", "-type", "Point", "-hex")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"x", "y"} {
		if !strings.Contains(got, want) {
			t.Errorf("trace %q does not mention %q", got, want)
		}
	}
	if _, err := runTool(t, "30 06 02 01 01", "-schema", writeSchema(t), "trace", "-type", "Point", "-hex"); err == nil {
		t.Errorf("got nil error for a truncated encoding")
	}
}

func TestCommandErrors(t *testing.T) {
	schema := writeSchema(t)
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"frobnicate"}},
		{"missing type", []string{"decode"}},
		{"unknown type", []string{"decode", "-type", "Line"}},
		{"bad rule", []string{"decode", "-type", "Point", "-rule", "xer"}},
		{"missing to", []string{"transcode", "-type", "Point"}},
		{"missing dir", []string{"batch", "-type", "Point", "-to", "der"}},
		{"missing pcap", []string{"replay"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runTool(t, "", append([]string{"-schema", schema}, tt.args...)...); err == nil {
				t.Errorf("got nil error, want one")
			}
		})
	}
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	inputs := map[string][]byte{
		"a.ber": {0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x02},
		"b.ber": {0x30, 0x80, 0x02, 0x01, 0x03, 0x02, 0x01, 0x04, 0x00, 0x00},
	}
	for name, b := range inputs {
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	_, err := runTool(t, "", "-schema", writeSchema(t), "batch", "-type", "Point", "-from", "ber", "-to", "uper", "-dir", dir, "-workers", "2")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"a.ber": "0102", "b.ber": "0304"}
	for name, w := range want {
		b, err := os.ReadFile(filepath.Join(dir, "out", name))
		if err != nil {
			t.Fatal(err)
		}
		if got := hex.EncodeToString(b); got != w {
			t.Errorf("%s: got %q, want %q", name, got, w)
		}
	}
}

// a get-response carrying a Counter32 binding for 1.3.6.1
const snmpResponse = "302202010104067075626c6963a215020107020100020100300a300806032b0601410105"

func writeCapture(t *testing.T, payload []byte) string {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{10, 0, 0, 2},
		DstIP:    net.IP{10, 0, 0, 1},
	}
	udp := &layers.UDP{SrcPort: 161, DstPort: 40000}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatal(err)
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "snmp.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: time.Unix(1700000000, 0), CaptureLength: len(data), Length: len(data)}
	if err := w.WritePacket(ci, data); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReplay(t *testing.T) {
	payload, err := hex.DecodeString(snmpResponse)
	if err != nil {
		t.Fatal(err)
	}
	got, err := runTool(t, "", "replay", "-pcap", writeCapture(t, payload))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Frame: 1 Src: 10.0.0.2:161, Dst: 10.0.0.1:40000",
		"Method: get-response",
		"Community: public",
		"RequestID: 7",
		"Type: Counter Value: 5",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q does not contain %q", got, want)
		}
	}
}
