// Package audio implements the playback engine: decoding, the output session,
// spectrum analysis and the worker that sequences them.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// The pipeline always produces interleaved 16-bit stereo at the source rate.
const (
	outputChannels = 2
	bytesPerSample = 2
)

// DecodedAudio is one fully decoded track.
type DecodedAudio struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (one sample per channel).
func (a *DecodedAudio) Frames() int {
	if a == nil || a.Channels <= 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// Duration returns the track length in seconds.
func (a *DecodedAudio) Duration() float64 {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	return float64(a.Frames()) / float64(a.SampleRate)
}

// StreamInfo describes the audio stream a Container selected.
type StreamInfo struct {
	Index      int
	Codec      string
	SampleRate int
	// Channels is the codec's resolved layout width, zero when the codec
	// does not declare a layout.
	Channels int
	// DeclaredChannels is the channel count carried by the stream params.
	DeclaredChannels int
}

// Packet is one unit of input read from a stream. Backends fill whichever
// field matches what their reader produces.
type Packet struct {
	Data    []byte
	Samples []float32
}

// Frame is a run of decoded native audio, interleaved, in [-1, 1].
type Frame struct {
	Samples  []float32
	Channels int
}

// Backend opens media files of the formats it understands.
type Backend interface {
	Name() string
	// Open returns ErrNotFound when the path cannot be opened.
	Open(path string) (Container, error)
}

// Container is an opened media file.
type Container interface {
	io.Closer
	// BestAudioStream returns ErrNoAudioStream when nothing is playable.
	BestAudioStream() (StreamInfo, error)
	// OpenCodec returns ErrDecoderInit when the stream's decoder cannot start.
	OpenCodec(ctx context.Context, info StreamInfo) (Codec, error)
}

// Codec reads packets of one stream and decodes them into frames.
type Codec interface {
	io.Closer
	// ReadPacket returns io.EOF once the input is exhausted.
	ReadPacket() (*Packet, error)
	// Decode feeds pkt and returns every frame that became ready. A nil
	// pkt flushes whatever the decoder still buffers.
	Decode(pkt *Packet) ([]Frame, error)
}

// PipelineConfig selects which backends NewPipeline registers.
type PipelineConfig struct {
	// FFmpegFallback enables the ffmpeg subprocess backend for extensions
	// no native backend handles.
	FFmpegFallback bool
}

// Pipeline decodes whole tracks into memory, choosing a backend by file
// extension.
type Pipeline struct {
	backends map[string]Backend
	fallback Backend
}

// NewPipeline creates a pipeline with the native beep decoders and, when
// requested and available, the ffmpeg fallback.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{backends: make(map[string]Backend)}
	for ext, b := range nativeBackends() {
		p.Register(ext, b)
	}

	if cfg.FFmpegFallback {
		ff, err := NewFFmpegBackend()
		if err != nil {
			log.Warn().Err(err).Msg("ffmpeg fallback unavailable, only native formats will play")
		} else {
			p.SetFallback(ff)
		}
	}

	return p
}

// Register routes files with extension ext (".mp3") to b.
func (p *Pipeline) Register(ext string, b Backend) {
	if p.backends == nil {
		p.backends = make(map[string]Backend)
	}
	p.backends[strings.ToLower(ext)] = b
}

// SetFallback sets the backend used for unregistered extensions.
func (p *Pipeline) SetFallback(b Backend) {
	p.fallback = b
}

// Supports reports whether some backend will attempt path.
func (p *Pipeline) Supports(path string) bool {
	_, err := p.backendFor(path)
	return err == nil
}

func (p *Pipeline) backendFor(path string) (Backend, error) {
	if b, ok := p.backends[strings.ToLower(filepath.Ext(path))]; ok {
		return b, nil
	}
	if p.fallback != nil {
		return p.fallback, nil
	}
	return nil, fmt.Errorf("%w: no decoder for %q", ErrNoAudioStream, filepath.Ext(path))
}

// Decode decodes path in full. ctx is polled before every packet and every
// decoded frame; once it is done Decode releases everything it opened and
// returns ErrCancelled without a partial buffer.
func (p *Pipeline) Decode(ctx context.Context, path string) (*DecodedAudio, error) {
	backend, err := p.backendFor(path)
	if err != nil {
		return nil, err
	}

	container, err := backend.Open(path)
	if err != nil {
		return nil, err
	}
	defer container.Close()

	info, err := container.BestAudioStream()
	if err != nil {
		return nil, err
	}
	if info.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrDecoderInit, info.SampleRate)
	}
	info.Channels = resolveChannels(info)

	conv, err := newConverter(info.Channels)
	if err != nil {
		return nil, err
	}

	codec, err := container.OpenCodec(ctx, info)
	if err != nil {
		return nil, err
	}
	defer codec.Close()

	pcm := make([]int16, 0, info.SampleRate*outputChannels*10)

	for {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}

		pkt, err := codec.ReadPacket()
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read packet: %w", err)
		}

		frames, err := codec.Decode(pkt)
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("skipping undecodable packet")
			continue
		}
		if pcm, err = drainFrames(ctx, conv, frames, pcm); err != nil {
			return nil, err
		}
	}

	frames, err := codec.Decode(nil)
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}
	if err != nil {
		return nil, fmt.Errorf("flush decoder: %w", err)
	}
	if pcm, err = drainFrames(ctx, conv, frames, pcm); err != nil {
		return nil, err
	}

	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTrack, path)
	}

	audio := &DecodedAudio{
		Samples:    pcm,
		SampleRate: info.SampleRate,
		Channels:   outputChannels,
	}

	log.Debug().
		Str("path", path).
		Str("backend", backend.Name()).
		Int("rate", audio.SampleRate).
		Int("frames", audio.Frames()).
		Float64("duration", audio.Duration()).
		Msg("decoded track")

	return audio, nil
}

func drainFrames(ctx context.Context, conv *converter, frames []Frame, pcm []int16) ([]int16, error) {
	for _, f := range frames {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		var err error
		if pcm, err = conv.Convert(f, pcm); err != nil {
			return nil, err
		}
	}
	return pcm, nil
}

// resolveChannels picks the input layout width: the codec's layout, then the
// stream's declared count, then stereo.
func resolveChannels(info StreamInfo) int {
	if info.Channels > 0 {
		return info.Channels
	}
	if info.DeclaredChannels > 0 {
		return info.DeclaredChannels
	}
	return outputChannels
}
