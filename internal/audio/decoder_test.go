package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

func pipelineWith(c *fakeContainer) *Pipeline {
	p := &Pipeline{}
	p.Register(".fake", &fakeBackend{container: c})
	return p
}

func TestDecodeDuration(t *testing.T) {
	c := &fakeContainer{
		info:    StreamInfo{SampleRate: 44100, Channels: 2},
		packets: constantPackets(441, 100, 2, 0.25),
	}

	audio, err := pipelineWith(c).Decode(context.Background(), "track.fake")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if audio.Frames() != 44100 {
		t.Errorf("Expected 44100 frames, got %d", audio.Frames())
	}
	if math.Abs(audio.Duration()-1.0) > 1e-9 {
		t.Errorf("Expected duration 1.0s, got %f", audio.Duration())
	}
	if audio.Channels != 2 || audio.SampleRate != 44100 {
		t.Errorf("Expected 44100 Hz stereo, got %d Hz %d channels", audio.SampleRate, audio.Channels)
	}
	if !c.closed || !c.codec.closed {
		t.Error("Expected container and codec to be closed")
	}
}

func TestDecodeChannelFallback(t *testing.T) {
	tests := []struct {
		name     string
		info     StreamInfo
		channels int
	}{
		{"layout wins", StreamInfo{SampleRate: 8000, Channels: 1, DeclaredChannels: 2}, 1},
		{"declared count", StreamInfo{SampleRate: 8000, DeclaredChannels: 1}, 1},
		{"stereo default", StreamInfo{SampleRate: 8000}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeContainer{
				info:    tt.info,
				packets: constantPackets(1, 10, tt.channels, 0.5),
			}

			audio, err := pipelineWith(c).Decode(context.Background(), "track.fake")
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if audio.Frames() != 10 {
				t.Errorf("Expected 10 frames, got %d", audio.Frames())
			}
			if audio.Samples[0] != audio.Samples[1] {
				t.Errorf("Expected equal left and right, got %d and %d", audio.Samples[0], audio.Samples[1])
			}
		})
	}
}

func TestDecodeSkipsBadPackets(t *testing.T) {
	c := &fakeContainer{
		info:       StreamInfo{SampleRate: 8000, Channels: 2},
		packets:    constantPackets(3, 10, 2, 0.1),
		badPackets: map[int]bool{1: true},
	}

	audio, err := pipelineWith(c).Decode(context.Background(), "track.fake")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if audio.Frames() != 20 {
		t.Errorf("Expected 20 frames after skipping one packet, got %d", audio.Frames())
	}
}

func TestDecodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &fakeContainer{
		info:    StreamInfo{SampleRate: 8000, Channels: 2},
		packets: constantPackets(100, 10, 2, 0.1),
		onPacket: func(i int) {
			if i == 3 {
				cancel()
			}
		},
	}

	audio, err := pipelineWith(c).Decode(ctx, "track.fake")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Expected ErrCancelled, got %v", err)
	}
	if audio != nil {
		t.Error("Expected no partial buffer after cancellation")
	}
	if c.codec.next > 5 {
		t.Errorf("Expected decode to stop promptly, read %d packets", c.codec.next)
	}
	if !c.closed || !c.codec.closed {
		t.Error("Expected container and codec to be released")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		c    *fakeContainer
		want error
	}{
		{
			name: "empty track",
			c:    &fakeContainer{info: StreamInfo{SampleRate: 8000, Channels: 2}},
			want: ErrEmptyTrack,
		},
		{
			name: "invalid sample rate",
			c:    &fakeContainer{info: StreamInfo{Channels: 2}},
			want: ErrDecoderInit,
		},
		{
			name: "unsupported layout",
			c:    &fakeContainer{info: StreamInfo{SampleRate: 8000, Channels: 12}},
			want: ErrResamplerInit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipelineWith(tt.c).Decode(context.Background(), "track.fake")
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeUnknownExtension(t *testing.T) {
	p := &Pipeline{}
	if p.Supports("track.xyz") {
		t.Error("Expected no support without a fallback")
	}

	_, err := p.Decode(context.Background(), "track.xyz")
	if !errors.Is(err, ErrNoAudioStream) {
		t.Errorf("Expected ErrNoAudioStream, got %v", err)
	}

	p.SetFallback(&fakeBackend{openErr: ErrNotFound})
	if !p.Supports("track.xyz") {
		t.Error("Expected fallback to accept any extension")
	}
}

func TestDecodeMissingFile(t *testing.T) {
	p := NewPipeline(PipelineConfig{})

	_, err := p.Decode(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDecodeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	const frames = 22050
	pcm := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/22050))
		pcm[i*2], pcm[i*2+1] = v, v
	}
	format := beep.Format{SampleRate: 22050, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, &pcmStreamer{samples: pcm, channels: 2}, format); err != nil {
		t.Fatalf("Failed to write WAV: %v", err)
	}
	f.Close()

	audio, err := NewPipeline(PipelineConfig{}).Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if audio.SampleRate != 22050 {
		t.Errorf("Expected native rate 22050, got %d", audio.SampleRate)
	}
	if audio.Frames() != frames {
		t.Errorf("Expected %d frames, got %d", frames, audio.Frames())
	}
}
