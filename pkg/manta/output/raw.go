package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/manta-sdr/manta/pkg/types"
)

const sampleBufferLength int = 8

// RawAudioOutput writes one stream's samples as little endian float32 to a
// writer, typically a pipe into an audio player. Frames for other streams
// are dropped.
type RawAudioOutput struct {
	dest     io.Writer
	vfoID    int
	recvChan chan *types.AudioFrame
}

func NewRawAudioOutput(dest io.Writer, vfoID int) *RawAudioOutput {
	return &RawAudioOutput{
		dest:     dest,
		vfoID:    vfoID,
		recvChan: make(chan *types.AudioFrame, sampleBufferLength),
	}
}

func (s *RawAudioOutput) Receive() chan<- *types.AudioFrame {
	return s.recvChan
}

func (s *RawAudioOutput) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		var buf bytes.Buffer
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case frame := <-s.recvChan:
				if frame.VFOID != s.vfoID {
					continue
				}
				buf.Reset()
				if err := binary.Write(&buf, binary.LittleEndian, frame.Data); err != nil {
					return err
				}
				if _, err := s.dest.Write(buf.Bytes()); err != nil {
					return err
				}
			}
		}
	})

	return eg.Wait()
}
