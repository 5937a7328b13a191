package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/austinkregel/local-media/spindle/internal/audio"
	"github.com/austinkregel/local-media/spindle/internal/scanner"
)

// spectrumBacklog is how many frames a slow subscriber may fall behind
// before frames are dropped.
const spectrumBacklog = 4

// Player is the engine surface the server drives.
type Player interface {
	SetPlaylist(paths []string, start int)
	AddFile(paths ...string) int
	Play()
	Pause()
	PlayPause()
	Stop()
	Next()
	Prev()
	PlayIndex(i int) bool
	Remove(i int) bool
	Seek(seconds float64)
	SetVolume(v float64)
	Shuffle(enabled bool)
	Repeat(enabled bool)
	Status() audio.Status
	Playlist() []string
}

// CollectFunc expands request paths into playable files.
type CollectFunc func(ctx context.Context, paths []string) ([]string, error)

// Server handles IPC communication with clients
type Server struct {
	socketPath string
	player     Player
	collect    CollectFunc
	logger     zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	clients  map[net.Conn]*client
}

// client is one connection. Responses and pushed frames share the
// connection, so writes go through writeMu.
type client struct {
	conn    net.Conn
	writeMu sync.Mutex

	subMu    sync.Mutex
	spectrum chan []byte
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(data)
	return err
}

// NewServer creates a new IPC server
func NewServer(socketPath string, player Player) *Server {
	return &Server{
		socketPath: socketPath,
		player:     player,
		collect:    scanner.Collect,
		logger:     log.With().Str("component", "ipc").Logger(),
		clients:    make(map[net.Conn]*client),
	}
}

// SetCollectFunc replaces how setPlaylist and add expand paths.
func (s *Server) SetCollectFunc(fn CollectFunc) {
	s.collect = fn
}

// Listen creates the socket. A stale socket file from an earlier run is
// replaced.
func (s *Server) Listen() error {
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set socket permissions (user-only)
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info().Str("socket", s.socketPath).Msg("control socket listening")
	return nil
}

// Serve accepts clients until ctx is done, then closes every connection
// and removes the socket. Listen must have succeeded first.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("ipc: Serve called before Listen")
	}

	go s.acceptLoop(ctx, listener)

	<-ctx.Done()

	s.mu.Lock()
	clientCount := len(s.clients)
	for conn := range s.clients {
		conn.Close()
	}
	s.mu.Unlock()

	listener.Close()
	os.RemoveAll(s.socketPath)

	s.logger.Info().Int("clients", clientCount).Msg("control socket closed")
	return nil
}

// Start listens and serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}

		c := &client{conn: conn}
		s.mu.Lock()
		s.clients[conn] = c
		clientCount := len(s.clients)
		s.mu.Unlock()

		s.logger.Debug().Int("clients", clientCount).Msg("client connected")
		go s.handleConnection(ctx, c)
	}
}

func (s *Server) handleConnection(ctx context.Context, c *client) {
	defer func() {
		s.unsubscribe(c)
		c.conn.Close()
		s.mu.Lock()
		delete(s.clients, c.conn)
		clientCount := len(s.clients)
		s.mu.Unlock()
		s.logger.Debug().Int("clients", clientCount).Msg("client disconnected")
	}()

	reader := bufio.NewReader(c.conn)

	for {
		// Read line (newline-delimited JSON)
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug().Err(err).Msg("read failed")
			}
			return
		}

		req, err := DecodeRequest(line)
		if err != nil {
			s.logger.Debug().Err(err).Msg("invalid request")
			if s.sendResponse(c, NewErrorResponse("invalid request format")) != nil {
				return
			}
			continue
		}

		// Status is polled; keep it out of the debug log
		if req.Cmd != CmdStatus {
			s.logger.Debug().Str("cmd", string(req.Cmd)).Msg("command")
		}

		resp := s.handleRequest(ctx, c, req)
		if err := s.sendResponse(c, resp); err != nil {
			s.logger.Debug().Err(err).Msg("send failed")
			return
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, c *client, req *Request) *Response {
	switch req.Cmd {
	case CmdSetPlaylist:
		return s.handleSetPlaylist(ctx, req)
	case CmdAdd:
		return s.handleAdd(ctx, req)
	case CmdPlay:
		s.player.Play()
		return s.handleStatus()
	case CmdPause:
		s.player.Pause()
		return s.handleStatus()
	case CmdPlayPause:
		s.player.PlayPause()
		return s.handleStatus()
	case CmdStop:
		s.player.Stop()
		return s.handleStatus()
	case CmdNext:
		s.player.Next()
		return s.handleStatus()
	case CmdPrev:
		s.player.Prev()
		return s.handleStatus()
	case CmdJump:
		return s.handleIndex(req, s.player.PlayIndex)
	case CmdRemove:
		return s.handleIndex(req, s.player.Remove)
	case CmdSeek:
		return s.handleSeek(req)
	case CmdVolume:
		return s.handleVolume(req)
	case CmdShuffle:
		return s.handleToggle(req, s.player.Shuffle)
	case CmdRepeat:
		return s.handleToggle(req, s.player.Repeat)
	case CmdStatus:
		return s.handleStatus()
	case CmdGetPlaylist:
		return s.handleGetPlaylist()
	case CmdSubscribeSpectrum:
		s.subscribe(c)
		return success(map[string]bool{"subscribed": true})
	case CmdUnsubscribeSpectrum:
		s.unsubscribe(c)
		return success(map[string]bool{"subscribed": false})
	default:
		return NewErrorResponse(fmt.Sprintf("unknown command %q", req.Cmd))
	}
}

func success(data interface{}) *Response {
	resp, err := NewSuccessResponse(data)
	if err != nil {
		return NewErrorResponse("internal error")
	}
	return resp
}

func decodeData(req *Request, v interface{}) error {
	if len(req.Data) == 0 {
		return fmt.Errorf("%s: missing data", req.Cmd)
	}
	if err := json.Unmarshal(req.Data, v); err != nil {
		return fmt.Errorf("invalid %s request", req.Cmd)
	}
	return nil
}

func (s *Server) handleSetPlaylist(ctx context.Context, req *Request) *Response {
	var r SetPlaylistRequest
	if err := decodeData(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}

	paths, err := s.collect(ctx, r.Paths)
	if err != nil {
		return NewErrorResponse(err.Error())
	}

	s.player.SetPlaylist(paths, r.Start)
	return s.handleStatus()
}

func (s *Server) handleAdd(ctx context.Context, req *Request) *Response {
	var r AddRequest
	if err := decodeData(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}

	paths, err := s.collect(ctx, r.Paths)
	if err != nil {
		return NewErrorResponse(err.Error())
	}

	return success(AddResponse{Added: s.player.AddFile(paths...)})
}

func (s *Server) handleIndex(req *Request, fn func(int) bool) *Response {
	var r IndexRequest
	if err := decodeData(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}
	if !fn(r.Index) {
		return NewErrorResponse(fmt.Sprintf("index %d out of range", r.Index))
	}
	return s.handleStatus()
}

func (s *Server) handleSeek(req *Request) *Response {
	var r SeekRequest
	if err := decodeData(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}
	s.player.Seek(r.Position)
	return s.handleStatus()
}

func (s *Server) handleVolume(req *Request) *Response {
	var r VolumeRequest
	if err := decodeData(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}
	s.player.SetVolume(r.Level)
	return s.handleStatus()
}

func (s *Server) handleToggle(req *Request, fn func(bool)) *Response {
	var r ToggleRequest
	if err := decodeData(req, &r); err != nil {
		return NewErrorResponse(err.Error())
	}
	fn(r.Enabled)
	return s.handleStatus()
}

func (s *Server) handleStatus() *Response {
	return success(s.player.Status())
}

func (s *Server) handleGetPlaylist() *Response {
	return success(PlaylistResponse{
		Items: s.player.Playlist(),
		Index: s.player.Status().Index,
	})
}

func (s *Server) sendResponse(c *client, resp *Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return c.write(append(data, '\n'))
}

// Spectrum subscriptions

func (s *Server) subscribe(c *client) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.spectrum != nil {
		return
	}

	frames := make(chan []byte, spectrumBacklog)
	c.spectrum = frames
	go func() {
		for frame := range frames {
			if err := c.write(frame); err != nil {
				return
			}
		}
	}()
}

func (s *Server) unsubscribe(c *client) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.spectrum != nil {
		close(c.spectrum)
		c.spectrum = nil
	}
}

// PushSpectrum sends bins to every subscriber. It never blocks: a
// subscriber whose backlog is full misses the frame.
func (s *Server) PushSpectrum(bins []float64) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	var msg []byte
	for _, c := range clients {
		c.subMu.Lock()
		if c.spectrum != nil {
			if msg == nil {
				var err error
				msg, err = NewPushMessage(PushSpectrum, SpectrumFrame{Bins: bins, RMS: audio.RMS(bins)})
				if err != nil {
					c.subMu.Unlock()
					return
				}
				msg = append(msg, '\n')
			}
			select {
			case c.spectrum <- msg:
			default:
			}
		}
		c.subMu.Unlock()
	}
}
