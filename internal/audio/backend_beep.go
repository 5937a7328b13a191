package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// beepPacketFrames is how many sample frames one ReadPacket pulls from a beep
// streamer.
const beepPacketFrames = 1024

type beepDecodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

// BeepBackend decodes one container format with a pure Go beep decoder.
type BeepBackend struct {
	name   string
	decode beepDecodeFunc
}

func nativeBackends() map[string]Backend {
	mp3Backend := &BeepBackend{name: "mp3", decode: func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return mp3.Decode(f)
	}}
	flacBackend := &BeepBackend{name: "flac", decode: func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return flac.Decode(f)
	}}
	wavBackend := &BeepBackend{name: "wav", decode: func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return wav.Decode(f)
	}}
	vorbisBackend := &BeepBackend{name: "vorbis", decode: func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return vorbis.Decode(f)
	}}

	return map[string]Backend{
		".mp3":  mp3Backend,
		".flac": flacBackend,
		".wav":  wavBackend,
		".ogg":  vorbisBackend,
		".oga":  vorbisBackend,
	}
}

func (b *BeepBackend) Name() string { return b.name }

// Open opens path and lets the decoder parse the container header.
func (b *BeepBackend) Open(path string) (Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}

	streamer, format, err := b.decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrNoAudioStream, path, err)
	}

	return &beepContainer{name: b.name, file: f, streamer: streamer, format: format}, nil
}

// beepContainer bundles the file and the streamer decoding it.
type beepContainer struct {
	name     string
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
}

func (c *beepContainer) BestAudioStream() (StreamInfo, error) {
	if c.format.SampleRate <= 0 {
		return StreamInfo{}, ErrNoAudioStream
	}
	// beep always hands out stereo frames, mono sources included.
	return StreamInfo{
		Codec:            c.name,
		SampleRate:       int(c.format.SampleRate),
		Channels:         2,
		DeclaredChannels: c.format.NumChannels,
	}, nil
}

func (c *beepContainer) OpenCodec(_ context.Context, info StreamInfo) (Codec, error) {
	if info.Channels != 2 {
		return nil, fmt.Errorf("%w: beep streams are stereo, got layout of %d", ErrDecoderInit, info.Channels)
	}
	return &beepCodec{streamer: c.streamer, buf: make([][2]float64, beepPacketFrames)}, nil
}

// Close releases the streamer and then the file.
func (c *beepContainer) Close() error {
	err := c.streamer.Close()
	// Some decoders close the file themselves.
	if ferr := c.file.Close(); ferr != nil && !errors.Is(ferr, os.ErrClosed) {
		err = errors.Join(err, ferr)
	}
	return err
}

type beepCodec struct {
	streamer beep.Streamer
	buf      [][2]float64
}

func (c *beepCodec) ReadPacket() (*Packet, error) {
	n, ok := c.streamer.Stream(c.buf)
	if n == 0 {
		if !ok {
			if err := c.streamer.Err(); err != nil {
				return nil, err
			}
		}
		return nil, io.EOF
	}

	samples := make([]float32, 0, n*2)
	for _, s := range c.buf[:n] {
		samples = append(samples, float32(s[0]), float32(s[1]))
	}
	return &Packet{Samples: samples}, nil
}

// Decode is a passthrough: beep decodes while streaming.
func (c *beepCodec) Decode(pkt *Packet) ([]Frame, error) {
	if pkt == nil {
		return nil, nil
	}
	return []Frame{{Samples: pkt.Samples, Channels: 2}}, nil
}

func (c *beepCodec) Close() error { return nil }
