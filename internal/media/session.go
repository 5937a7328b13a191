// Package media exposes the engine to desktop media controls (MPRIS on Linux).
package media

import (
	"time"
)

// PlaybackState is the transport state as desktop controls name it.
type PlaybackState string

const (
	StateStopped PlaybackState = "Stopped"
	StatePlaying PlaybackState = "Playing"
	StatePaused  PlaybackState = "Paused"
)

// Metadata describes the loaded track.
type Metadata struct {
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
	ArtPath  string
}

// LoopStatus is the MPRIS repeat mode. The engine repeats single tracks
// only, so Track and Playlist both mean repeat on.
type LoopStatus string

const (
	LoopNone     LoopStatus = "None"
	LoopTrack    LoopStatus = "Track"
	LoopPlaylist LoopStatus = "Playlist"
)

// Session mirrors engine state to the desktop and forwards the desktop's
// commands back through a CommandHandler. Updates must not block.
type Session interface {
	UpdateMetadata(metadata Metadata) error
	UpdatePlaybackState(state PlaybackState, position time.Duration) error
	UpdateShuffle(enabled bool) error
	UpdateLoopStatus(status LoopStatus) error
	UpdateVolume(volume float64) error
	SetCommandHandler(handler CommandHandler)
	Close() error
}

// Command is a request from desktop controls, named after the MPRIS
// method or property that produced it.
type Command string

// Data carried with each command: CmdSeek an absolute time.Duration,
// CmdSeekBy a time.Duration offset from the playhead, CmdSetShuffle a bool, CmdSetLoopStatus a LoopStatus, CmdSetVolume a
// float64. The rest carry nil.
const (
	CmdPlay          Command = "Play"
	CmdPause         Command = "Pause"
	CmdPlayPause     Command = "PlayPause"
	CmdStop          Command = "Stop"
	CmdNext          Command = "Next"
	CmdPrevious      Command = "Previous"
	CmdSeek          Command = "SetPosition"
	CmdSeekBy        Command = "Seek"
	CmdSetShuffle    Command = "Shuffle"
	CmdSetLoopStatus Command = "LoopStatus"
	CmdSetVolume     Command = "Volume"
)

// CommandHandler receives commands from desktop controls.
type CommandHandler interface {
	OnCommand(cmd Command, data interface{}) error
}

// PositionSource is implemented by handlers that can report the live
// playhead. Sessions prefer it over the position of the last update.
type PositionSource interface {
	MediaPosition() time.Duration
}

// CommandHandlerFunc is a function adapter for CommandHandler
type CommandHandlerFunc func(cmd Command, data interface{}) error

func (f CommandHandlerFunc) OnCommand(cmd Command, data interface{}) error {
	return f(cmd, data)
}

// NoOpSession discards updates. It stands in when no desktop session bus
// is reachable or media controls are disabled.
type NoOpSession struct{}

func NewNoOpSession() *NoOpSession { return &NoOpSession{} }

func (*NoOpSession) UpdateMetadata(Metadata) error                          { return nil }
func (*NoOpSession) UpdatePlaybackState(PlaybackState, time.Duration) error { return nil }
func (*NoOpSession) UpdateShuffle(bool) error                               { return nil }
func (*NoOpSession) UpdateLoopStatus(LoopStatus) error                      { return nil }
func (*NoOpSession) UpdateVolume(float64) error                             { return nil }
func (*NoOpSession) SetCommandHandler(CommandHandler)                       {}
func (*NoOpSession) Close() error                                           { return nil }
