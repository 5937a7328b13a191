package audio

import (
	"errors"
	"testing"
)

func newTestSession(t *testing.T) (*Session, *fakeVoice) {
	t.Helper()
	sink := &fakeSink{}
	s, err := NewSession(sink, 1.0)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s, sink.voice()
}

func TestSessionLoad(t *testing.T) {
	s, voice := newTestSession(t)

	if err := s.Load(silence(1000, 120)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !s.IsPlaying() || !s.Loaded() {
		t.Error("Expected session to be playing after Load")
	}
	if s.Duration() != 120 {
		t.Errorf("Expected duration 120, got %f", s.Duration())
	}
	if voice.State() != VoicePlaying {
		t.Errorf("Expected voice playing, got %s", voice.State())
	}
}

func TestSessionLoadRejected(t *testing.T) {
	s, voice := newTestSession(t)
	voice.uploadErr = errors.New("device busy")

	err := s.Load(silence(1000, 1))
	if !errors.Is(err, ErrOutputDevice) {
		t.Fatalf("Expected ErrOutputDevice, got %v", err)
	}
	if s.IsPlaying() || s.Loaded() {
		t.Error("Expected transport to stay stopped")
	}
}

func TestSessionSeekClamps(t *testing.T) {
	s, voice := newTestSession(t)
	s.Load(silence(1000, 120))

	tests := []struct {
		seek     float64
		expected float64
	}{
		{-5, 0},
		{500, 120},
		{42.5, 42.5},
	}

	for _, tt := range tests {
		got := s.Seek(tt.seek)
		if got != tt.expected {
			t.Errorf("Seek(%f): expected %f, got %f", tt.seek, tt.expected, got)
		}
		if s.Position() != tt.expected {
			t.Errorf("Seek(%f): expected position %f, got %f", tt.seek, tt.expected, s.Position())
		}
		if last, _ := voice.lastSeek(); last != tt.expected {
			t.Errorf("Seek(%f): expected voice at %f, got %f", tt.seek, tt.expected, last)
		}
	}
}

func TestSessionSeekWithoutDuration(t *testing.T) {
	s, voice := newTestSession(t)

	if got := s.Seek(30); got != 0 {
		t.Errorf("Expected seek with no duration to clamp to 0, got %f", got)
	}
	if _, ok := voice.lastSeek(); ok {
		t.Error("Expected no voice seek without a buffer")
	}
}

func TestSessionVolumeClamps(t *testing.T) {
	s, voice := newTestSession(t)

	tests := []struct {
		volume   float64
		expected float64
	}{
		{-1, 0},
		{0.7, 0.7},
		{3, 2},
	}

	for _, tt := range tests {
		s.SetVolume(tt.volume)
		if s.Volume() != tt.expected {
			t.Errorf("SetVolume(%f): expected %f, got %f", tt.volume, tt.expected, s.Volume())
		}
		if voice.gain != tt.expected {
			t.Errorf("SetVolume(%f): expected gain %f, got %f", tt.volume, tt.expected, voice.gain)
		}
	}
}

func TestSessionPauseResume(t *testing.T) {
	s, voice := newTestSession(t)

	if s.Play() {
		t.Error("Expected Play without a buffer to report false")
	}

	s.Load(silence(1000, 10))
	s.Pause()
	if s.IsPlaying() || voice.State() != VoicePaused {
		t.Error("Expected paused session")
	}

	if !s.Play() {
		t.Error("Expected Play to resume the loaded buffer")
	}
	if !s.IsPlaying() || voice.State() != VoicePlaying {
		t.Error("Expected playing session after resume")
	}
}

func TestSessionStopKeepsPosition(t *testing.T) {
	s, _ := newTestSession(t)
	s.Load(silence(1000, 60))
	s.Seek(12)

	s.Stop()
	if s.Loaded() || s.IsPlaying() {
		t.Error("Expected buffer to be released")
	}
	if s.Position() != 12 {
		t.Errorf("Expected position 12 after Stop, got %f", s.Position())
	}
	if _, _, ok := s.SpectrumWindow(); ok {
		t.Error("Expected no spectrum window without a buffer")
	}
}

func TestSessionPoll(t *testing.T) {
	s, voice := newTestSession(t)
	s.Load(silence(1000, 60))

	voice.SetPosition(7.5)
	if state := s.Poll(); state != VoicePlaying {
		t.Errorf("Expected playing, got %s", state)
	}
	if s.Position() != 7.5 {
		t.Errorf("Expected polled position 7.5, got %f", s.Position())
	}

	voice.end()
	if state := s.Poll(); state != VoiceStopped {
		t.Errorf("Expected stopped at end, got %s", state)
	}

	s.finish()
	if s.IsPlaying() {
		t.Error("Expected not playing after finish")
	}
	if s.Position() != s.Duration() {
		t.Errorf("Expected position at duration after finish, got %f", s.Position())
	}
}

func TestNewSessionDeviceError(t *testing.T) {
	_, err := NewSession(&fakeSink{voiceErr: errors.New("no device")}, 1)
	if !errors.Is(err, ErrOutputDevice) {
		t.Errorf("Expected ErrOutputDevice, got %v", err)
	}
}
