package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/austinkregel/local-media/spindle/internal/audio"
)

const dialTimeout = 2 * time.Second

// Client talks to a running player over its control socket. Calls are
// serialized; a client is safe for concurrent use.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader

	mu sync.Mutex
}

// Dial connects to the control socket at socketPath.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", socketPath, err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends one command and waits for its response. data is encoded as the
// request payload when not nil. Pushed frames that arrive first are skipped.
func (c *Client) Call(ctx context.Context, cmd CommandType, data interface{}) (*Response, error) {
	req, err := NewRequest(cmd, data)
	if err != nil {
		return nil, err
	}
	payload, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	if _, err := c.conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", cmd, err)
	}

	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", cmd, err)
		}
		if isPush(line) {
			continue
		}
		resp, err := DecodeResponse(line)
		if err != nil {
			return nil, err
		}
		if !resp.Success {
			return resp, fmt.Errorf("%s: %s", cmd, resp.Error)
		}
		return resp, nil
	}
}

func isPush(line []byte) bool {
	var probe struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(line, &probe) == nil && probe.Type != ""
}

// Status fetches the current playback status.
func (c *Client) Status(ctx context.Context) (*audio.Status, error) {
	resp, err := c.Call(ctx, CmdStatus, nil)
	if err != nil {
		return nil, err
	}
	var st audio.Status
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &st, nil
}

// Spectrum subscribes to spectrum frames and calls fn for each until ctx
// is done or the connection fails. The client must not be used for other
// calls while Spectrum runs.
func (c *Client) Spectrum(ctx context.Context, fn func(SpectrumFrame)) error {
	if _, err := c.Call(ctx, CmdSubscribeSpectrum, nil); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("spectrum stream: %w", err)
		}

		var msg PushMessage
		if err := json.Unmarshal(line, &msg); err != nil || msg.Type != PushSpectrum {
			continue
		}
		var frame SpectrumFrame
		if err := json.Unmarshal(msg.Data, &frame); err != nil {
			continue
		}
		fn(frame)
	}
}
