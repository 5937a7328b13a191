package audio

import "errors"

var (
	// ErrNotFound means the source path could not be opened.
	ErrNotFound = errors.New("source not found")
	// ErrNoAudioStream means the container has no usable audio track.
	ErrNoAudioStream = errors.New("no audio stream")
	ErrDecoderInit   = errors.New("decoder init failed")
	ErrResamplerInit = errors.New("resampler init failed")
	// ErrEmptyTrack means decoding finished without producing any PCM.
	ErrEmptyTrack   = errors.New("empty track")
	ErrOutputDevice = errors.New("output device error")
	// ErrCancelled is returned when an interrupt raced the decode. It is not
	// a failure and never reaches engine callers.
	ErrCancelled = errors.New("decode cancelled")
)
