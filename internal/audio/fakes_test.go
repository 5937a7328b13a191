package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// fakeBackend serves one container for every path.
type fakeBackend struct {
	container *fakeContainer
	openErr   error
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Open(path string) (Container, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.container, nil
}

type fakeContainer struct {
	info    StreamInfo
	packets [][]float32
	// badPackets are indices Decode rejects.
	badPackets map[int]bool
	// onPacket runs before packet i is returned.
	onPacket func(i int)

	codec  *fakeCodec
	closed bool
}

func (c *fakeContainer) BestAudioStream() (StreamInfo, error) {
	return c.info, nil
}

func (c *fakeContainer) OpenCodec(ctx context.Context, info StreamInfo) (Codec, error) {
	c.codec = &fakeCodec{container: c, channels: info.Channels}
	return c.codec, nil
}

func (c *fakeContainer) Close() error {
	c.closed = true
	return nil
}

type fakeCodec struct {
	container *fakeContainer
	channels  int
	next      int
	closed    bool
}

func (c *fakeCodec) ReadPacket() (*Packet, error) {
	if c.next >= len(c.container.packets) {
		return nil, io.EOF
	}
	i := c.next
	c.next++
	if c.container.onPacket != nil {
		c.container.onPacket(i)
	}
	return &Packet{Data: []byte{byte(i)}, Samples: c.container.packets[i]}, nil
}

func (c *fakeCodec) Decode(pkt *Packet) ([]Frame, error) {
	if pkt == nil {
		return nil, nil
	}
	if c.container.badPackets[int(pkt.Data[0])] {
		return nil, errors.New("corrupt packet")
	}
	return []Frame{{Samples: pkt.Samples, Channels: c.channels}}, nil
}

func (c *fakeCodec) Close() error {
	c.closed = true
	return nil
}

// constantPackets returns count packets of frames frames each at value v.
func constantPackets(count, frames, channels int, v float32) [][]float32 {
	packets := make([][]float32, count)
	for i := range packets {
		p := make([]float32, frames*channels)
		for j := range p {
			p[j] = v
		}
		packets[i] = p
	}
	return packets
}

// fakeSink hands out fakeVoices.
type fakeSink struct {
	mu       sync.Mutex
	voices   []*fakeVoice
	voiceErr error
	closed   bool
}

func (s *fakeSink) NewVoice() (Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voiceErr != nil {
		return nil, s.voiceErr
	}
	v := &fakeVoice{}
	s.voices = append(s.voices, v)
	return v, nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) voice() *fakeVoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voices[0]
}

func (s *fakeSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeVoice keeps transport state in memory. Tests end a track with end.
type fakeVoice struct {
	mu        sync.Mutex
	state     VoiceState
	pcm       []int16
	rate      int
	uploads   int
	uploadErr error
	position  float64
	seeks     []float64
	gain      float64
	closed    bool
}

func (v *fakeVoice) Upload(pcm []int16, rate, channels int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.uploadErr != nil {
		return v.uploadErr
	}
	v.pcm = pcm
	v.rate = rate
	v.uploads++
	v.state = VoiceStopped
	v.position = 0
	return nil
}

func (v *fakeVoice) Play() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pcm != nil {
		v.state = VoicePlaying
	}
}

func (v *fakeVoice) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == VoicePlaying {
		v.state = VoicePaused
	}
}

func (v *fakeVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = VoiceStopped
	v.pcm = nil
}

func (v *fakeVoice) State() VoiceState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *fakeVoice) Position() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position
}

func (v *fakeVoice) SetPosition(seconds float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.position = seconds
	v.seeks = append(v.seeks, seconds)
}

func (v *fakeVoice) SetGain(g float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gain = g
}

func (v *fakeVoice) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.state = VoiceStopped
	return nil
}

// end simulates the voice draining its buffer.
func (v *fakeVoice) end() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = VoiceStopped
}

func (v *fakeVoice) lastSeek() (float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.seeks) == 0 {
		return 0, false
	}
	return v.seeks[len(v.seeks)-1], true
}

func (v *fakeVoice) uploadCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.uploads
}

// fakeDecoder returns canned results per path. Paths in block wait for
// their context to end.
type fakeDecoder struct {
	mu      sync.Mutex
	tracks  map[string]*DecodedAudio
	errs    map[string]error
	block   map[string]bool
	calls   []string
	started chan string
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{
		tracks:  make(map[string]*DecodedAudio),
		errs:    make(map[string]error),
		block:   make(map[string]bool),
		started: make(chan string, 64),
	}
}

func (d *fakeDecoder) Decode(ctx context.Context, path string) (*DecodedAudio, error) {
	d.mu.Lock()
	d.calls = append(d.calls, path)
	audio, err, block := d.tracks[path], d.errs[path], d.block[path]
	d.mu.Unlock()

	select {
	case d.started <- path:
	default:
	}

	if block {
		<-ctx.Done()
		return nil, ErrCancelled
	}
	if err != nil {
		return nil, err
	}
	if audio == nil {
		return nil, ErrNotFound
	}
	return audio, nil
}

// silence builds a stereo track of the given length.
func silence(rate int, seconds float64) *DecodedAudio {
	frames := int(float64(rate) * seconds)
	return &DecodedAudio{
		Samples:    make([]int16, frames*outputChannels),
		SampleRate: rate,
		Channels:   outputChannels,
	}
}

// waitFor polls cond until it holds or the timeout passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
