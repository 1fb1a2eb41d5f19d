package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/manta-sdr/manta/pkg/manta/config"
	"github.com/manta-sdr/manta/pkg/types"
)

const receiveChannels = 8

// frameMagic marks the start of one datagram of the stream wire format.
const frameMagic uint32 = 0x4d414e54

// Wire format, little endian: magic, vfo id, sample rate, segment number,
// frame length in microseconds, payload byte count, then the raw opus
// payload. One frame per datagram.
type frameHeader struct {
	Magic         uint32
	VFOID         uint32
	SampleRate    uint32
	SegmentNumber uint32
	FrameLengthUS uint32
	PayloadBytes  uint16
}

// OpusUDPOutput encodes each VFO stream with its own opus encoder and sends
// the framed packets to every configured destination.
type OpusUDPOutput struct {
	dests      []config.OutputDestination
	sampleRate int
	recvChan   chan *types.AudioFrame
	opusChan   chan *OpusFrame
	mu         sync.Mutex
	encoders   map[int]*OpusEncoder
	metrics    api.WriteAPI
}

func NewOpusUDPOutput(dests []config.OutputDestination, sampleRate int, metrics api.WriteAPI) *OpusUDPOutput {
	return &OpusUDPOutput{
		dests:      dests,
		sampleRate: sampleRate,
		recvChan:   make(chan *types.AudioFrame, receiveChannels),
		encoders:   make(map[int]*OpusEncoder),
		opusChan:   make(chan *OpusFrame),
		metrics:    metrics,
	}
}

func (s *OpusUDPOutput) Receive() chan<- *types.AudioFrame {
	return s.recvChan
}

func (s *OpusUDPOutput) getEncoder(vfoID int) (*OpusEncoder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc, ok := s.encoders[vfoID]
	if ok {
		return enc, false, nil
	}
	enc, err := NewOpusEncoder(s.sampleRate, vfoID, s.opusChan)
	if err != nil {
		return nil, false, err
	}
	s.encoders[vfoID] = enc
	return enc, true, nil
}

func (s *OpusUDPOutput) Start(ctx context.Context) error {

	eg, ctx := errgroup.WithContext(ctx)

	const numSenders int = 4

	destAddrs := make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {

		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		log.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("stream output starting")
	}

	for i := 0; i < numSenders; i++ {
		eg.Go(func() error {

			conn, err := net.ListenUDP("udp", nil)
			if err != nil {
				return err
			}
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case frame := <-s.opusChan:

					var msgBuf bytes.Buffer
					if err := binary.Write(&msgBuf, binary.LittleEndian, frameHeader{
						Magic:         frameMagic,
						VFOID:         uint32(frame.VFOID),
						SampleRate:    uint32(frame.SampleRate),
						SegmentNumber: uint32(frame.SegmentNumber),
						FrameLengthUS: uint32(frame.FrameLengthMicroseconds),
						PayloadBytes:  uint16(len(frame.Data)),
					}); err != nil {
						log.Warn().Err(err).Msg("error encoding frame header")
						continue
					}
					if _, err := msgBuf.Write(frame.Data); err != nil {
						log.Warn().Err(err).Msg("error writing encoded frame")
						continue
					}

					success := true
					var bytesWritten int
					for _, destAddr := range destAddrs {
						bytesWritten, err = conn.WriteToUDP(msgBuf.Bytes(), destAddr)
						if err != nil {
							log.Error().Err(err).Msg("error writing")
							success = false
						}
					}

					go s.metrics.WritePoint(influxdb2.NewPoint("opus.sent_frame",
						map[string]string{
							"vfo": strconv.Itoa(frame.VFOID),
						},
						map[string]interface{}{
							"bytes_written":  bytesWritten,
							"frame_us":       frame.FrameLengthMicroseconds,
							"encoded_length": len(frame.Data),
							"sent": func() int {
								if success {
									return 1
								}
								return 0
							}(),
							"dropped": func() int {
								if success {
									return 0
								}
								return 1
							}(),
						}, time.Now()))
				}
			}
		})
	}

	for i := 0; i < numSenders; i++ {

		eg.Go(func() error {

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()

				case frame := <-s.recvChan:

					enc, created, err := s.getEncoder(frame.VFOID)
					if err != nil {
						return err
					}
					if created {
						eg.Go(func() error {
							return enc.Start(ctx)
						})
					}

					select {
					case <-ctx.Done():
						return ctx.Err()
					case enc.ReceiveChannel() <- frame:
					}

				}
			}
		})
	}

	return eg.Wait()
}
