// Package pcap implements a source extracting SPEAD packets from the UDP
// payloads of a pcap or pcapng capture file.
package pcap

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/ip4defrag"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/speadcap/internal/config"
	"firestige.xyz/speadcap/internal/core"
	"firestige.xyz/speadcap/internal/log"
	"firestige.xyz/speadcap/internal/utils"
	"firestige.xyz/speadcap/pkg/plugin"
)

const Name = "pcap"

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

func init() {
	plugin.RegisterSource(Name, NewPcapSource)
}

// Config represents pcap source configuration.
type Config struct {
	Path       string `mapstructure:"path"`        // required
	Port       uint16 `mapstructure:"port"`        // UDP destination port, 0 = any
	MaxPackets int    `mapstructure:"max_packets"` // 0 = unlimited
	Reassemble bool   `mapstructure:"reassemble"`  // IPv4 fragment reassembly, default true
}

// Stats counts what happened to the frames of one Read.
type Stats struct {
	Frames     int
	Filtered   int // dropped by the port filter
	Fragments  int // IPv4 fragments consumed by reassembly
	Misaligned int // UDP payloads not a multiple of 8 bytes
	Sequences  int
}

// PcapSource reads word sequences from a capture file.
type PcapSource struct {
	config Config
	filter *utils.PacketFilter
	logger log.Logger
	stats  Stats
}

// NewPcapSource creates a new pcap source.
func NewPcapSource() plugin.Source {
	return &PcapSource{config: Config{Reassemble: true}}
}

func (s *PcapSource) Name() string { return Name }

func (s *PcapSource) Init(cfg map[string]any) error {
	if err := config.DecodePluginConfig(cfg, &s.config); err != nil {
		return err
	}
	if s.config.Path == "" {
		return fmt.Errorf("%w: path is required", core.ErrConfigInvalid)
	}
	if s.config.MaxPackets < 0 {
		return fmt.Errorf("%w: max_packets must not be negative", core.ErrConfigInvalid)
	}
	if s.config.Port != 0 {
		f, err := utils.NewPacketFilter(utils.UDPPortFilter(s.config.Port))
		if err != nil {
			return err
		}
		s.filter = f
	}
	s.logger = log.GetLogger().WithField("source", Name)
	return nil
}

func (s *PcapSource) Start(ctx context.Context) error { return nil }
func (s *PcapSource) Stop(ctx context.Context) error  { return nil }

// Stats returns the counters of the last Read.
func (s *PcapSource) Stats() Stats { return s.stats }

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// Read extracts one word sequence per accepted UDP datagram, in capture order.
func (s *PcapSource) Read(ctx context.Context) ([][]core.Word, error) {
	rc, err := utils.OpenInput(s.config.Path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader, linkType, err := openCapture(bufio.NewReader(rc))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.config.Path, err)
	}

	var defrag *ip4defrag.IPv4Defragmenter
	if s.config.Reassemble {
		defrag = ip4defrag.NewIPv4Defragmenter()
	}

	s.stats = Stats{}
	var seqs [][]core.Word
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.config.MaxPackets > 0 && len(seqs) >= s.config.MaxPackets {
			break
		}

		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: read frame %d: %w", s.config.Path, s.stats.Frames+1, err)
		}
		s.stats.Frames++

		if linkType == layers.LinkTypeEthernet && !s.filter.Match(data) {
			s.stats.Filtered++
			continue
		}

		payload, ok := s.udpPayload(data, linkType, ci, defrag)
		if !ok {
			continue
		}
		words, ok := WordsFromBytes(payload)
		if !ok {
			s.stats.Misaligned++
			s.logger.WithField("frame", s.stats.Frames).WithField("bytes", len(payload)).
				Warn("udp payload is not a whole number of words, skipped")
			continue
		}
		seqs = append(seqs, words)
	}

	s.stats.Sequences = len(seqs)
	s.logger.WithFields(map[string]interface{}{
		"path":       s.config.Path,
		"frames":     s.stats.Frames,
		"filtered":   s.stats.Filtered,
		"fragments":  s.stats.Fragments,
		"misaligned": s.stats.Misaligned,
		"sequences":  s.stats.Sequences,
	}).Info("capture read")
	return seqs, nil
}

// udpPayload decodes a frame down to its UDP payload, feeding IPv4 fragments
// through the defragmenter. ok is false when the frame yields nothing yet.
func (s *PcapSource) udpPayload(data []byte, linkType layers.LinkType, ci gopacket.CaptureInfo,
	defrag *ip4defrag.IPv4Defragmenter) ([]byte, bool) {
	pkt := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	var udp *layers.UDP
	if ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok && isFragment(ip4) {
		if defrag == nil || ip4.Protocol != layers.IPProtocolUDP {
			return nil, false
		}
		s.stats.Fragments++
		whole, err := defrag.DefragIPv4WithTimestamp(ip4, ci.Timestamp)
		if err != nil {
			s.logger.WithError(err).WithField("frame", s.stats.Frames).Warn("ipv4 reassembly failed")
			return nil, false
		}
		if whole == nil {
			return nil, false
		}
		udp = &layers.UDP{}
		if err := udp.DecodeFromBytes(whole.Payload, gopacket.NilDecodeFeedback); err != nil {
			return nil, false
		}
	} else {
		l, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			return nil, false
		}
		udp = l
	}

	if s.config.Port != 0 && uint16(udp.DstPort) != s.config.Port {
		s.stats.Filtered++
		return nil, false
	}
	return udp.Payload, true
}

func isFragment(ip *layers.IPv4) bool {
	return ip.Flags&layers.IPv4MoreFragments != 0 || ip.FragOffset != 0
}

// openCapture detects pcap or pcapng by magic number.
func openCapture(br *bufio.Reader) (packetReader, layers.LinkType, error) {
	magic, err := br.Peek(4)
	if err != nil {
		return nil, 0, fmt.Errorf("not a capture file: %w", err)
	}
	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, 0, err
		}
		return ng, ng.LinkType(), nil
	}
	r, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, 0, err
	}
	return r, r.LinkType(), nil
}

// WordsFromBytes splits b into big-endian words. ok is false when len(b) is
// not a multiple of 8.
func WordsFromBytes(b []byte) ([]core.Word, bool) {
	if len(b)%8 != 0 {
		return nil, false
	}
	words := make([]core.Word, len(b)/8)
	for i := range words {
		words[i] = core.Word(binary.BigEndian.Uint64(b[i*8:]))
	}
	return words, true
}
