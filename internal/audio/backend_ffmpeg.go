package audio

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
)

// ffmpegReadSize is the pipe read size, one packet per read.
const ffmpegReadSize = 4096

// FFmpegBackend uses ffprobe to pick the stream and ffmpeg to decode it to
// native float samples.
type FFmpegBackend struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegBackend creates a new FFmpeg-based backend
func NewFFmpegBackend() (*FFmpegBackend, error) {
	// Find ffmpeg and ffprobe in PATH
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &FFmpegBackend{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}

func (b *FFmpegBackend) Name() string { return "ffmpeg" }

type probeStream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`
	SampleRate    string `json:"sample_rate"`
	Channels      int    `json:"channels"`
	ChannelLayout string `json:"channel_layout"`
	Disposition   struct {
		Default int `json:"default"`
	} `json:"disposition"`
}

// Open probes the audio streams of path.
func (b *FFmpegBackend) Open(path string) (Container, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a",
		path,
	}

	output, err := exec.Command(b.ffprobePath, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe failed: %v", ErrNoAudioStream, err)
	}

	var probeResult struct {
		Streams []probeStream `json:"streams"`
	}
	if err := json.Unmarshal(output, &probeResult); err != nil {
		return nil, fmt.Errorf("%w: failed to parse ffprobe output: %v", ErrNoAudioStream, err)
	}

	return &ffmpegContainer{backend: b, path: path, streams: probeResult.Streams}, nil
}

type ffmpegContainer struct {
	backend *FFmpegBackend
	path    string
	streams []probeStream
}

// BestAudioStream prefers the stream flagged default, then the first one.
func (c *ffmpegContainer) BestAudioStream() (StreamInfo, error) {
	if len(c.streams) == 0 {
		return StreamInfo{}, ErrNoAudioStream
	}

	best := c.streams[0]
	for _, s := range c.streams {
		if s.Disposition.Default == 1 {
			best = s
			break
		}
	}

	rate, err := strconv.Atoi(best.SampleRate)
	if err != nil {
		return StreamInfo{}, fmt.Errorf("%w: bad sample rate %q", ErrNoAudioStream, best.SampleRate)
	}

	info := StreamInfo{
		Index:            best.Index,
		Codec:            best.CodecName,
		SampleRate:       rate,
		DeclaredChannels: best.Channels,
	}
	if best.ChannelLayout != "" {
		info.Channels = best.Channels
	}
	return info, nil
}

// OpenCodec starts ffmpeg writing native-rate f32le with info.Channels
// channels to its stdout. ctx kills the process.
func (c *ffmpegContainer) OpenCodec(ctx context.Context, info StreamInfo) (Codec, error) {
	args := []string{
		"-v", "error",
		"-nostdin",
		"-i", c.path,
		"-map", fmt.Sprintf("0:%d", info.Index),
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", strconv.Itoa(info.Channels),
		"-ar", strconv.Itoa(info.SampleRate),
		"-",
	}

	cmd := exec.CommandContext(ctx, c.backend.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get stdout pipe: %v", ErrDecoderInit, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", ErrDecoderInit, err)
	}

	return &ffmpegCodec{
		cmd:      cmd,
		stdout:   stdout,
		channels: info.Channels,
		buf:      make([]byte, ffmpegReadSize),
	}, nil
}

func (c *ffmpegContainer) Close() error { return nil }

type ffmpegCodec struct {
	cmd      *exec.Cmd
	stdout   io.Reader
	channels int
	buf      []byte
	carry    []byte
	waited   bool
}

func (c *ffmpegCodec) ReadPacket() (*Packet, error) {
	n, err := c.stdout.Read(c.buf)
	if n > 0 {
		data := make([]byte, n)
		copy(data, c.buf[:n])
		return &Packet{Data: data}, nil
	}
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	return &Packet{}, nil
}

// Decode splits raw bytes into whole frames, carrying partial ones over. The
// flush call reaps ffmpeg and reports its exit status.
func (c *ffmpegCodec) Decode(pkt *Packet) ([]Frame, error) {
	if pkt == nil {
		c.carry = nil
		c.waited = true
		if err := c.cmd.Wait(); err != nil {
			return nil, fmt.Errorf("ffmpeg: %w", err)
		}
		return nil, nil
	}

	data := append(c.carry, pkt.Data...)
	frameBytes := 4 * c.channels
	whole := len(data) / frameBytes * frameBytes

	samples := make([]float32, whole/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	c.carry = append([]byte(nil), data[whole:]...)

	if len(samples) == 0 {
		return nil, nil
	}
	return []Frame{{Samples: samples, Channels: c.channels}}, nil
}

// Close kills and reaps ffmpeg unless the flush already did.
func (c *ffmpegCodec) Close() error {
	if c.waited || c.cmd.Process == nil {
		return nil
	}
	c.waited = true
	c.cmd.Process.Kill()
	c.cmd.Wait() // Reap zombie process
	return nil
}
