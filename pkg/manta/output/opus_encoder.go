package output

import (
	"context"
	"time"

	"github.com/hraban/opus"
	"golang.org/x/sync/errgroup"

	"github.com/manta-sdr/manta/pkg/dsp/agc/rmsagc"
	"github.com/manta-sdr/manta/pkg/types"
)

const usPerFrame int = 40e3

var validUsRates []int = []int{2.5e3, 5e3, 10e3, 20e3}

const agcAlpha = 2e-4
const agcLevel = 0.3

// OpusFrame is one encoded packet for one VFO stream, ready for the wire.
type OpusFrame struct {
	VFOID                   int
	SampleRate              int
	SegmentNumber           int
	Data                    []byte
	FrameLengthMicroseconds int
	Timestamp               time.Time
}

// OpusEncoder accumulates one VFO's audio into fixed-duration frames,
// levels it, and encodes. A timer flushes a shorter frame when the stream
// goes quiet so the tail of a transmission is not held back.
type OpusEncoder struct {
	sampleRate    int
	vfoID         int
	outBuf        [16384]byte
	encBuf        [4096]byte
	inBuf         [4096]float32
	inBufPos      int
	outBufPos     int
	outBufCount   int
	encoder       *opus.Encoder
	agc           *rmsagc.AGC
	segmentNumber int

	outputChan  chan *OpusFrame
	receiveChan chan *types.AudioFrame
}

func NewOpusEncoder(sampleRate, vfoID int, outputChan chan *OpusFrame) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, err
	}

	if err := enc.SetPacketLossPerc(20); err != nil {
		return nil, err
	}
	enc.SetBitrateToAuto()
	return &OpusEncoder{
		sampleRate:  sampleRate,
		vfoID:       vfoID,
		receiveChan: make(chan *types.AudioFrame, 1),
		outputChan:  outputChan,
		encoder:     enc,
		agc:         rmsagc.New(agcAlpha, agcLevel),
	}, nil
}

func (o *OpusEncoder) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Microsecond * time.Duration(usPerFrame) * 3 / 2):
				if err := o.maybeFlush(ctx, true); err != nil {
					return err
				}
			case frame := <-o.receiveChan:
				n := len(frame.Data)
				if room := len(o.inBuf) - o.inBufPos; n > room {
					// Encoder is hopelessly behind, drop the oldest audio.
					n = room
				}
				o.agc.WorkBuffer(frame.Data[:n], o.inBuf[o.inBufPos:o.inBufPos+n])
				o.inBufPos += n
				if err := o.maybeFlush(ctx, false); err != nil {
					return err
				}
			}
		}
	})

	return eg.Wait()
}

func (o *OpusEncoder) maybeFlush(ctx context.Context, force bool) error {

	samplesPerFrame := o.sampleRate * usPerFrame / 1e6

	if o.inBufPos > samplesPerFrame || (force && o.inBufPos > 0) {
		if force {
			// create smaller segment size
			set := false
			for j := len(validUsRates) - 1; j >= 0; j-- {
				thisFrameCount := validUsRates[j] * o.sampleRate / 1e6
				if thisFrameCount < o.inBufPos {
					samplesPerFrame = thisFrameCount
					set = true
					break
				}
			}
			// too short, just throw it away
			if !set {
				o.inBufPos = 0
				o.outBufPos = 0
				o.outBufCount = 0
				return nil
			}
		}

		inputSample := o.inBuf[:samplesPerFrame]
		bytesEncoded, err := o.encoder.EncodeFloat32(inputSample, o.encBuf[0:4096])
		if err != nil {
			return err
		}

		// Move leftover samples to beginning of input buffer and reset position
		o.inBufPos = o.inBufPos - samplesPerFrame
		copy(o.inBuf[0:o.inBufPos], o.inBuf[samplesPerFrame:samplesPerFrame+o.inBufPos])

		// Copy encoded to end of output buffer
		copy(o.outBuf[o.outBufPos:o.outBufPos+bytesEncoded], o.encBuf[0:bytesEncoded])
		o.outBufCount++
		o.outBufPos += bytesEncoded

		ret := make([]byte, o.outBufPos)
		copy(ret, o.outBuf[0:o.outBufPos])

		o.outBufCount = 0
		o.outBufPos = 0

		select {
		case <-ctx.Done():
			return ctx.Err()
		case o.outputChan <- &OpusFrame{
			VFOID:                   o.vfoID,
			SampleRate:              o.sampleRate,
			SegmentNumber:           o.segmentNumber,
			Data:                    ret,
			FrameLengthMicroseconds: samplesPerFrame * 1e6 / o.sampleRate,
			Timestamp:               time.Now().UTC()}:
			o.segmentNumber++
		}
	}
	return nil
}

func (o *OpusEncoder) ReceiveChannel() chan<- *types.AudioFrame {
	return o.receiveChan
}
