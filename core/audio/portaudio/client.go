//go:build cgo

// Package portaudio is an alternative local audio backend built on
// PortAudio, for platforms where miniaudio misbehaves.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/fablevoice/fable-core/core/audio"
)

type Client struct {
	bufferSize  int
	stream      *portaudio.Stream
	queuedAudio []byte
	sequence    uint64

	in  []int16
	out []int16
}

// NewClient opens the default duplex stream. bufferSize is in samples; 320
// gives the 20 ms frames the segmenter expects.
func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

// StartCapture reads sequenced microphone frames into onFrame until ctx is
// cancelled. It blocks and should run on its own goroutine.
func (c *Client) StartCapture(ctx context.Context, onFrame func(frame audio.Frame)) error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	encoding := c.EncodingInfo()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.stream.Read(); err != nil {
				return fmt.Errorf("failed to read from portaudio stream: %w", err)
			}

			audioBuffer := bytes.Buffer{}
			if err := binary.Write(&audioBuffer, binary.LittleEndian, c.in); err != nil {
				return fmt.Errorf("failed to encode captured samples: %w", err)
			}

			frame := audio.Frame{
				Sequence: c.sequence,
				PCM:      audioBuffer.Bytes(),
				Encoding: encoding,
			}
			c.sequence++
			onFrame(frame)
		}
	}
}

// Play writes synthesized audio to the output stream in buffer-sized chunks,
// holding back the remainder until the next call.
func (c *Client) Play(pcm []byte) error {
	chunkSize := c.bufferSize * 2

	pcm = append(c.queuedAudio, pcm...)
	for i := range len(pcm)/chunkSize + 1 {
		if (i+1)*chunkSize > len(pcm) {
			c.queuedAudio = make([]byte, len(pcm)-i*chunkSize)
			copy(c.queuedAudio, pcm[i*chunkSize:])
			break
		}

		if err := binary.Read(bytes.NewBuffer(pcm[i*chunkSize:(i+1)*chunkSize]), binary.LittleEndian, c.out); err != nil {
			return fmt.Errorf("failed to decode playback samples: %w", err)
		}
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to portaudio stream: %w", err)
		}
	}

	return nil
}

// StopSpeaking drops audio held back by Play, for turn cancellation.
func (c *Client) StopSpeaking() {
	c.queuedAudio = nil
}

func (c *Client) Close() {
	c.stream.Close()
	portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
