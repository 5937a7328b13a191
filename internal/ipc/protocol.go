// Package ipc is the control socket: newline-delimited JSON requests and
// responses over a unix socket, plus pushed spectrum frames.
package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents the type of command
type CommandType string

const (
	CmdSetPlaylist CommandType = "setPlaylist"
	CmdAdd         CommandType = "add"
	CmdPlay        CommandType = "play"
	CmdPause       CommandType = "pause"
	CmdPlayPause   CommandType = "playPause"
	CmdStop        CommandType = "stop"
	CmdNext        CommandType = "next"
	CmdPrev        CommandType = "prev"
	CmdJump        CommandType = "jump"
	CmdRemove      CommandType = "remove"
	CmdSeek        CommandType = "seek"
	CmdVolume      CommandType = "volume"
	CmdShuffle     CommandType = "shuffle"
	CmdRepeat      CommandType = "repeat"
	CmdStatus      CommandType = "status"
	CmdGetPlaylist CommandType = "playlist"

	// Spectrum visualization
	CmdSubscribeSpectrum   CommandType = "subscribeSpectrum"
	CmdUnsubscribeSpectrum CommandType = "unsubscribeSpectrum"
)

// PushSpectrum is the push message type carrying SpectrumFrame.
const PushSpectrum = "spectrum"

// PushMessage represents a server-initiated message (no request needed)
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Request represents a client request
type Request struct {
	Cmd  CommandType     `json:"cmd"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response represents a server response
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SetPlaylistRequest is the data for a setPlaylist command. Directories in
// Paths are expanded to the audio files below them.
type SetPlaylistRequest struct {
	Paths []string `json:"paths"`
	Start int      `json:"start"`
}

// AddRequest is the data for an add command
type AddRequest struct {
	Paths []string `json:"paths"`
}

// AddResponse is the response to an add command
type AddResponse struct {
	Added int `json:"added"`
}

// IndexRequest is the data for jump and remove commands
type IndexRequest struct {
	Index int `json:"index"`
}

// SeekRequest is the data for a seek command
type SeekRequest struct {
	Position float64 `json:"position"` // seconds
}

// VolumeRequest is the data for a volume command
type VolumeRequest struct {
	Level float64 `json:"level"` // 0.0 - 2.0
}

// ToggleRequest is the data for shuffle and repeat commands
type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// PlaylistResponse is the response to a playlist command
type PlaylistResponse struct {
	Items []string `json:"items"`
	Index int      `json:"index"`
}

// SpectrumFrame is pushed to spectrum subscribers every poll tick
type SpectrumFrame struct {
	Bins []float64 `json:"bins"`
	RMS  float64   `json:"rms"`
}

// EncodeRequest encodes a request to JSON
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest decodes a request from JSON
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

// NewRequest builds a request, encoding data if it is not nil.
func NewRequest(cmd CommandType, data interface{}) (*Request, error) {
	raw, err := marshalData(data)
	if err != nil {
		return nil, err
	}
	return &Request{Cmd: cmd, Data: raw}, nil
}

// EncodeResponse encodes a response to JSON
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse decodes a response from JSON
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data interface{}) (*Response, error) {
	raw, err := marshalData(data)
	if err != nil {
		return nil, err
	}
	return &Response{
		Success: true,
		Data:    raw,
	}, nil
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// NewPushMessage creates a push message for streaming data
func NewPushMessage(msgType string, data interface{}) ([]byte, error) {
	raw, err := marshalData(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(PushMessage{
		Type: msgType,
		Data: raw,
	})
}

func marshalData(data interface{}) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	return json.Marshal(data)
}
