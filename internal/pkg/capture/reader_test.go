package capture

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile_Raw(t *testing.T) {
	content := []byte("GET /etc/passwd HTTP/1.0\r\n")
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	buf, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, content, buf.Data)
	assert.Equal(t, 0, buf.Packets)
	assert.Equal(t, path, buf.Path)
}

func TestReadFile_RawBinary(t *testing.T) {
	content := []byte{0x00, 0x01, 0x02, 0xff, 0x00}
	path := filepath.Join(t.TempDir(), "payload.dat")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	buf, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, buf.Data)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.bin"))
	assert.Error(t, err)
}

func writeTestPcap(t *testing.T, path string, payloads [][]byte) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	for _, payload := range payloads {
		eth := layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
			DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IP{10, 0, 0, 1},
			DstIP:    net.IP{10, 0, 0, 2},
		}
		udp := layers.UDP{SrcPort: 40000, DstPort: 5060}
		require.NoError(t, udp.SetNetworkLayerForChecksum(&ip))

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(buf, opts, &eth, &ip, &udp, gopacket.Payload(payload)))

		data := buf.Bytes()
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1700000000, 0),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}
}

func TestReadFile_Pcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	writeTestPcap(t, path, [][]byte{
		[]byte("USER anonymous\r\n"),
		[]byte("PASS guest\r\n"),
	})

	buf, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, buf.Packets)
	assert.Equal(t, []byte("USER anonymous\r\nPASS guest\r\n"), buf.Data)
}

func TestReadFile_PcapEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pcap")

	f, err := os.Create(path)
	require.NoError(t, err)
	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	require.NoError(t, f.Close())

	buf, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, buf.Data)
	assert.Equal(t, 0, buf.Packets)
}

func TestReadFile_PcapTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pcap")
	require.NoError(t, os.WriteFile(path, []byte("not a pcap"), 0o644))

	_, err := ReadFile(path)
	assert.Error(t, err)
}
