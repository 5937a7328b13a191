package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/hajimehoshi/oto/v2"
)

const (
	defaultDeviceSampleRate = 44100
	defaultResampleQuality  = 4
)

// VoiceState is what a voice reports about its playback.
type VoiceState int

const (
	VoiceStopped VoiceState = iota
	VoicePlaying
	VoicePaused
)

func (s VoiceState) String() string {
	switch s {
	case VoicePlaying:
		return "playing"
	case VoicePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// Sink is an output device that hands out voices.
type Sink interface {
	NewVoice() (Voice, error)
	Close() error
}

// Voice plays one uploaded PCM buffer. Play, Pause, SetPosition and SetGain
// are safe to call from any goroutine.
type Voice interface {
	// Upload replaces the voice's buffer and leaves it stopped.
	Upload(pcm []int16, sampleRate, channels int) error
	Play()
	Pause()
	// Stop halts playback and drops everything queued to the device.
	Stop()
	State() VoiceState
	// Position is the playback cursor in seconds as heard from the device.
	Position() float64
	SetPosition(seconds float64)
	SetGain(gain float64)
	Close() error
}

// OtoSink is an output device backed by an oto context running at a fixed
// device rate. Tracks at other rates are resampled by their voice.
type OtoSink struct {
	context    *oto.Context
	sampleRate int
	quality    int
}

// NewOtoSink opens the default output device.
func NewOtoSink(sampleRate, resampleQuality int) (*OtoSink, error) {
	if sampleRate <= 0 {
		sampleRate = defaultDeviceSampleRate
	}
	if resampleQuality <= 0 {
		resampleQuality = defaultResampleQuality
	}

	// Create Oto context
	ctx, ready, err := oto.NewContext(sampleRate, outputChannels, bytesPerSample)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create oto context: %v", ErrOutputDevice, err)
	}

	// Wait for context to be ready
	<-ready

	return &OtoSink{
		context:    ctx,
		sampleRate: sampleRate,
		quality:    resampleQuality,
	}, nil
}

func (s *OtoSink) NewVoice() (Voice, error) {
	return &otoVoice{sink: s, gainLevel: 1}, nil
}

// Close suspends the device. oto contexts cannot be destroyed, only
// suspended.
func (s *OtoSink) Close() error {
	return s.context.Suspend()
}

// otoVoice feeds an oto player from a beep chain:
//
//	[pcm] -> [Resample to device rate] -> [Gain] -> oto player
type otoVoice struct {
	sink *OtoSink

	mu         sync.Mutex
	player     oto.Player
	pcm        *pcmStreamer
	chain      beep.Streamer
	gain       *effects.Gain
	gainLevel  float64
	sampleRate int
	paused     bool
	scratch    [][2]float64
}

func (v *otoVoice) Upload(pcm []int16, sampleRate, channels int) error {
	if len(pcm) == 0 || sampleRate <= 0 || (channels != 1 && channels != 2) {
		return fmt.Errorf("%w: rejected buffer (%d samples, %d Hz, %d channels)", ErrOutputDevice, len(pcm), sampleRate, channels)
	}

	v.Stop()

	src := &pcmStreamer{samples: pcm, channels: channels}
	var s beep.Streamer = src
	if sampleRate != v.sink.sampleRate {
		s = beep.Resample(v.sink.quality, beep.SampleRate(sampleRate), beep.SampleRate(v.sink.sampleRate), s)
	}

	v.mu.Lock()
	v.pcm = src
	v.gain = &effects.Gain{Streamer: s, Gain: v.gainLevel - 1}
	v.chain = v.gain
	v.sampleRate = sampleRate
	v.paused = false
	v.mu.Unlock()

	player := v.sink.context.NewPlayer(v)
	if err := player.Err(); err != nil {
		player.Close()
		return fmt.Errorf("%w: %v", ErrOutputDevice, err)
	}

	v.mu.Lock()
	v.player = player
	v.mu.Unlock()
	return nil
}

// Read implements io.Reader for the oto player. It must not call into the
// player, which holds its own lock while reading.
func (v *otoVoice) Read(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.chain == nil {
		return 0, io.EOF
	}

	frames := len(p) / (outputChannels * bytesPerSample)
	if cap(v.scratch) < frames {
		v.scratch = make([][2]float64, frames)
	}
	buf := v.scratch[:frames]

	n, ok := v.chain.Stream(buf)
	if n == 0 && !ok {
		return 0, io.EOF
	}

	for i, s := range buf[:n] {
		l := toInt16(float32(s[0]))
		r := toInt16(float32(s[1]))
		p[i*4] = byte(l)
		p[i*4+1] = byte(l >> 8)
		p[i*4+2] = byte(r)
		p[i*4+3] = byte(r >> 8)
	}
	return n * outputChannels * bytesPerSample, nil
}

func (v *otoVoice) Play() {
	v.mu.Lock()
	v.paused = false
	player := v.player
	v.mu.Unlock()

	if player != nil {
		player.Play()
	}
}

func (v *otoVoice) Pause() {
	v.mu.Lock()
	player := v.player
	if player != nil {
		v.paused = true
	}
	v.mu.Unlock()

	if player != nil {
		player.Pause()
	}
}

func (v *otoVoice) Stop() {
	v.mu.Lock()
	player := v.player
	v.player = nil
	v.chain = nil
	v.gain = nil
	v.pcm = nil
	v.paused = false
	v.mu.Unlock()

	// Closing the player discards whatever it still buffers.
	if player != nil {
		player.Pause()
		player.Close()
	}
}

func (v *otoVoice) State() VoiceState {
	v.mu.Lock()
	player := v.player
	paused := v.paused
	v.mu.Unlock()

	switch {
	case player == nil:
		return VoiceStopped
	case paused:
		return VoicePaused
	case player.IsPlaying():
		return VoicePlaying
	default:
		return VoiceStopped
	}
}

func (v *otoVoice) Position() float64 {
	v.mu.Lock()
	player := v.player
	if v.pcm == nil || v.sampleRate <= 0 {
		v.mu.Unlock()
		return 0
	}
	consumed := float64(v.pcm.Position()) / float64(v.sampleRate)
	length := float64(v.pcm.Len()) / float64(v.sampleRate)
	v.mu.Unlock()

	if player != nil {
		unplayed := float64(player.UnplayedBufferSize()) / float64(v.sink.sampleRate*outputChannels*bytesPerSample)
		consumed -= unplayed
	}
	if consumed < 0 {
		consumed = 0
	}
	if consumed > length {
		consumed = length
	}
	return consumed
}

func (v *otoVoice) SetPosition(seconds float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pcm == nil {
		return
	}
	v.pcm.Seek(int(seconds * float64(v.sampleRate)))
}

func (v *otoVoice) SetGain(gain float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.gainLevel = gain
	if v.gain != nil {
		v.gain.Gain = gain - 1
	}
}

func (v *otoVoice) Close() error {
	v.Stop()
	return nil
}

// pcmStreamer streams an interleaved 16-bit buffer as a beep.StreamSeeker.
type pcmStreamer struct {
	samples  []int16
	channels int
	pos      int
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	total := s.Len()
	if s.pos >= total {
		return 0, false
	}

	for n < len(samples) && s.pos < total {
		i := s.pos * s.channels
		l := float64(s.samples[i]) / 32768.0
		r := l
		if s.channels > 1 {
			r = float64(s.samples[i+1]) / 32768.0
		}
		samples[n] = [2]float64{l, r}
		n++
		s.pos++
	}
	return n, true
}

func (s *pcmStreamer) Err() error { return nil }

func (s *pcmStreamer) Len() int { return len(s.samples) / s.channels }

func (s *pcmStreamer) Position() int { return s.pos }

func (s *pcmStreamer) Seek(p int) error {
	if p < 0 {
		p = 0
	}
	if p > s.Len() {
		p = s.Len()
	}
	s.pos = p
	return nil
}

// Ensure otoVoice implements io.Reader
var _ io.Reader = (*otoVoice)(nil)
