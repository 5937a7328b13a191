package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
)

const (
	minVolume = 0.0
	// maxVolume allows controlled overdrive above unity gain.
	maxVolume = 2.0
)

// atomicFloat is a float64 readable without locks.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 { return math.Float64frombits(f.bits.Load()) }

func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

// Session owns the output voice and the decoded buffer it plays. Position,
// Duration, Volume and IsPlaying are lock-free reads; each is atomic on its
// own with no guarantee across fields.
type Session struct {
	voice Voice

	bufMu sync.Mutex
	audio *DecodedAudio

	loaded   atomic.Bool
	playing  atomic.Bool
	position atomicFloat
	duration atomicFloat
	volume   atomicFloat
}

// NewSession creates a session with its own voice on sink.
func NewSession(sink Sink, volume float64) (*Session, error) {
	voice, err := sink.NewVoice()
	if err != nil {
		if errors.Is(err, ErrOutputDevice) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrOutputDevice, err)
	}

	s := &Session{voice: voice}
	s.volume.Store(clampVolume(volume))
	return s, nil
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return minVolume
	}
	return lo.Clamp(v, minVolume, maxVolume)
}

// Load uploads audio to the voice, installs it as the current buffer and
// starts playback. On rejection the transport is left stopped.
func (s *Session) Load(audio *DecodedAudio) error {
	s.voice.Stop()
	s.playing.Store(false)

	if err := s.voice.Upload(audio.Samples, audio.SampleRate, audio.Channels); err != nil {
		s.unload()
		if errors.Is(err, ErrOutputDevice) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrOutputDevice, err)
	}

	s.bufMu.Lock()
	s.audio = audio
	s.bufMu.Unlock()

	s.duration.Store(audio.Duration())
	s.position.Store(0)
	s.voice.SetGain(s.volume.Load())
	s.voice.Play()
	s.loaded.Store(true)
	s.playing.Store(true)
	return nil
}

// Play resumes a loaded buffer and reports whether there was one.
func (s *Session) Play() bool {
	if !s.loaded.Load() {
		return false
	}
	s.voice.Play()
	s.playing.Store(true)
	return true
}

// Pause suspends the voice, keeping the position.
func (s *Session) Pause() {
	if !s.loaded.Load() {
		return
	}
	s.voice.Pause()
	s.playing.Store(false)
}

// Stop halts the voice, drops everything queued to it and releases the
// buffer. Position and duration keep their values.
func (s *Session) Stop() {
	s.voice.Stop()
	s.unload()
}

func (s *Session) unload() {
	s.loaded.Store(false)
	s.playing.Store(false)

	s.bufMu.Lock()
	s.audio = nil
	s.bufMu.Unlock()
}

// finish records a natural end of track and releases the buffer.
func (s *Session) finish() {
	s.unload()
	s.position.Store(s.duration.Load())
}

// reset zeroes position and duration for a new playlist.
func (s *Session) reset() {
	s.position.Store(0)
	s.duration.Store(0)
}

// Seek clamps seconds to [0, duration], moves the voice when it holds a
// buffer and stores the result so readers see it before the next poll.
func (s *Session) Seek(seconds float64) float64 {
	if math.IsNaN(seconds) {
		seconds = 0
	}
	seconds = lo.Clamp(seconds, 0, s.duration.Load())

	if s.loaded.Load() {
		switch s.voice.State() {
		case VoicePlaying, VoicePaused:
			s.voice.SetPosition(seconds)
		}
	}
	s.position.Store(seconds)
	return seconds
}

// SetVolume clamps v to [0, 2] and applies it to the voice.
func (s *Session) SetVolume(v float64) float64 {
	v = clampVolume(v)
	s.volume.Store(v)
	s.voice.SetGain(v)
	return v
}

// Poll refreshes the cached position from the voice and returns its state.
func (s *Session) Poll() VoiceState {
	state := s.voice.State()
	if s.loaded.Load() {
		s.position.Store(s.voice.Position())
	}
	return state
}

// SpectrumWindow copies the analysis window at the current position.
func (s *Session) SpectrumWindow() (window []int16, channels int, ok bool) {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()

	if s.audio == nil || s.audio.SampleRate <= 0 {
		return nil, 0, false
	}
	frame := int(s.position.Load() * float64(s.audio.SampleRate))
	window, ok = WindowAt(s.audio.Samples, s.audio.Channels, frame)
	return window, s.audio.Channels, ok
}

func (s *Session) IsPlaying() bool { return s.playing.Load() }

func (s *Session) Loaded() bool { return s.loaded.Load() }

func (s *Session) Position() float64 { return s.position.Load() }

func (s *Session) Duration() float64 { return s.duration.Load() }

func (s *Session) Volume() float64 { return s.volume.Load() }

// Close stops and releases the voice.
func (s *Session) Close() error {
	s.unload()
	return s.voice.Close()
}
