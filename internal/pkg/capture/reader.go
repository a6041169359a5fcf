// Package capture reads the input a scan runs over. Capture files
// (.pcap/.pcapng) are decoded packet by packet and their transport
// payloads concatenated into one contiguous buffer, so signature offsets
// are relative to that payload stream; any other file is read verbatim.
package capture

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/rulehound/sigbench/internal/pkg/logger"
)

// Buffer is the loaded scan input.
type Buffer struct {
	// Data is the contiguous byte buffer handed to the engines.
	Data []byte

	// Path is the source file.
	Path string

	// Packets is the number of packets contributing payload; zero for
	// raw files.
	Packets int
}

// ReadFile loads path into a scan buffer, dispatching on extension.
func ReadFile(path string) (*Buffer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcap", ".pcapng", ".cap":
		return readCapture(path)
	default:
		return readRaw(path)
	}
}

func readRaw(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return &Buffer{Data: data, Path: path}, nil
}

func readCapture(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	source, linkType, err := newPacketSource(f, path)
	if err != nil {
		return nil, err
	}

	buf := &Buffer{Path: path}
	for {
		data, _, err := source.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read packet: %w", err)
		}

		payload := packetPayload(data, linkType)
		if len(payload) == 0 {
			continue
		}
		buf.Data = append(buf.Data, payload...)
		buf.Packets++
	}

	logger.Debug("capture loaded",
		"path", path, "packets", buf.Packets, "bytes", len(buf.Data))
	return buf, nil
}

// packetDataSource is the subset of pcapgo readers the loader needs.
type packetDataSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

func newPacketSource(f *os.File, path string) (packetDataSource, layers.LinkType, error) {
	if strings.EqualFold(filepath.Ext(path), ".pcapng") {
		r, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, 0, fmt.Errorf("open pcapng: %w", err)
		}
		return r, r.LinkType(), nil
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, 0, fmt.Errorf("open pcap: %w", err)
	}
	return r, r.LinkType(), nil
}

// packetPayload extracts the application payload when the packet decodes,
// falling back to the transport payload and finally the raw frame. The
// fallback keeps undecodable frames scannable instead of dropping them.
func packetPayload(data []byte, linkType layers.LinkType) []byte {
	pkt := gopacket.NewPacket(data, linkType, gopacket.Lazy)
	if app := pkt.ApplicationLayer(); app != nil {
		return app.Payload()
	}
	if tl := pkt.TransportLayer(); tl != nil {
		return tl.LayerPayload()
	}
	return data
}
