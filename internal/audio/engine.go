package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/austinkregel/local-media/spindle/internal/media"
	"github.com/austinkregel/local-media/spindle/internal/queue"
	"github.com/austinkregel/local-media/spindle/internal/scanner"
)

const (
	defaultPollInterval = 120 * time.Millisecond
	defaultIdleInterval = 150 * time.Millisecond
	// skipBackoff spaces out retries when every track in a loop fails.
	skipBackoff = 250 * time.Millisecond
)

// PlaybackState represents the current state of the engine
type PlaybackState string

const (
	StateStopped PlaybackState = "stopped"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

// TrackMetadata contains metadata to display in OS media sessions
type TrackMetadata struct {
	Title   string `json:"title,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Album   string `json:"album,omitempty"`
	ArtPath string `json:"artPath,omitempty"`
}

// MetadataFunc resolves display metadata for a track path.
type MetadataFunc func(path string) *TrackMetadata

// Status represents the current playback status
type Status struct {
	State    PlaybackState `json:"state"`
	Path     string        `json:"path,omitempty"`
	Index    int           `json:"index"`
	Count    int           `json:"count"`
	Position float64       `json:"position"` // seconds
	Duration float64       `json:"duration"` // seconds
	Volume   float64       `json:"volume"`   // 0.0 - 2.0
	Shuffle  bool          `json:"shuffle"`
	Repeat   bool          `json:"repeat"`
}

// TrackChangeCallback is called from the worker after a track starts.
type TrackChangeCallback func(path string)

// Decoder turns a file into PCM.
type Decoder interface {
	Decode(ctx context.Context, path string) (*DecodedAudio, error)
}

// Options configures an Engine.
type Options struct {
	DeviceSampleRate int
	ResampleQuality  int
	FFmpegFallback   bool
	Volume           float64
	PollInterval     time.Duration
	IdleInterval     time.Duration
	Shuffle          bool
	Repeat           bool
}

// Engine plays a playlist on a single background worker. All methods are
// safe for concurrent use.
type Engine struct {
	sink     Sink
	decoder  Decoder
	session  *Session
	playlist *queue.Manager
	analyzer *Analyzer
	logger   zerolog.Logger

	pollInterval time.Duration
	idleInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}

	// armed gates the worker; cleared by Stop.
	armed atomic.Bool
	// epoch is bumped by every interrupting command.
	epoch    atomic.Uint64
	resumeAt atomicFloat

	cycleMu     sync.Mutex
	cancelCycle context.CancelFunc

	mu            sync.RWMutex
	currentPath   string
	onSpectrum    SpectrumCallback
	onTrackChange TrackChangeCallback
	metadataFunc  MetadataFunc
	mediaSession  media.Session

	closeOnce sync.Once
	closeErr  error
}

// New opens the default output device and decode pipeline and starts an
// engine on them. Failure to open the device is fatal.
func New(opts Options) (*Engine, error) {
	if opts.DeviceSampleRate <= 0 {
		opts.DeviceSampleRate = defaultDeviceSampleRate
	}
	if opts.ResampleQuality <= 0 {
		opts.ResampleQuality = defaultResampleQuality
	}

	sink, err := NewOtoSink(opts.DeviceSampleRate, opts.ResampleQuality)
	if err != nil {
		return nil, err
	}
	pipeline := NewPipeline(PipelineConfig{FFmpegFallback: opts.FFmpegFallback})

	e, err := NewEngine(sink, pipeline, opts)
	if err != nil {
		sink.Close()
		return nil, err
	}
	return e, nil
}

// NewEngine starts an engine on the given sink and decoder. The engine owns
// the sink from here on and closes it in Close.
func NewEngine(sink Sink, decoder Decoder, opts Options) (*Engine, error) {
	session, err := NewSession(sink, opts.Volume)
	if err != nil {
		return nil, err
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = defaultIdleInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		sink:         sink,
		decoder:      decoder,
		session:      session,
		playlist:     queue.NewManager(),
		analyzer:     NewAnalyzer(),
		logger:       log.With().Str("component", "engine").Logger(),
		pollInterval: opts.PollInterval,
		idleInterval: opts.IdleInterval,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		wake:         make(chan struct{}, 1),
	}
	e.playlist.SetShuffle(opts.Shuffle)
	e.playlist.SetRepeat(opts.Repeat)
	e.armed.Store(true)

	go e.run()
	return e, nil
}

// run is the worker loop. It sleeps while there is nothing to play, decodes
// the current entry, plays it to the end and advances.
func (e *Engine) run() {
	defer close(e.done)
	e.logger.Debug().Msg("worker started")

	for e.ctx.Err() == nil {
		epoch := e.epoch.Load()
		if !e.armed.Load() {
			e.idle(e.idleInterval)
			continue
		}
		path, version, ok := e.playlist.Current()
		if !ok {
			e.idle(e.idleInterval)
			continue
		}
		e.cycle(epoch, path, version)
	}

	e.logger.Debug().Msg("worker exited")
}

func (e *Engine) idle(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-e.ctx.Done():
	case <-e.wake:
	case <-timer.C:
	}
}

// backoff waits d unless the engine closes or the cycle is interrupted.
func (e *Engine) backoff(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (e *Engine) cycle(epoch uint64, path string, version uint64) {
	ctx, ok := e.beginCycle(epoch)
	defer e.endCycle()
	if !ok {
		return
	}

	logger := e.logger.With().
		Str("load", uuid.NewString()[:8]).
		Str("path", path).
		Logger()
	logger.Info().Msg("decoding track")

	decoded, err := e.decoder.Decode(ctx, path)
	if ctx.Err() != nil || errors.Is(err, ErrCancelled) {
		logger.Debug().Msg("decode interrupted")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to decode track, skipping")
		e.skip(ctx, version)
		return
	}

	if err := e.session.Load(decoded); err != nil {
		logger.Error().Err(err).Msg("output rejected track, skipping")
		e.skip(ctx, version)
		return
	}
	if ctx.Err() != nil {
		e.session.Stop()
		return
	}

	if resume := e.resumeAt.Load(); resume > 0 {
		e.resumeAt.Store(0)
		e.session.Seek(resume)
	}
	e.trackStarted(path, decoded, logger)

	if !e.playUntilDone(ctx) {
		logger.Debug().Msg("playback interrupted")
		e.session.Stop()
		e.publishState()
		return
	}

	logger.Info().Msg("track finished")
	e.session.finish()
	e.publishState()
	if !e.playlist.Advance(version) {
		logger.Debug().Msg("playlist changed during playback, not advancing")
	}
}

func (e *Engine) skip(ctx context.Context, version uint64) {
	e.playlist.Skip(version)
	e.backoff(ctx, skipBackoff)
}

// beginCycle registers a cancellable context for one load. It reports false
// when an interrupt arrived after the worker sampled epoch.
func (e *Engine) beginCycle(epoch uint64) (context.Context, bool) {
	e.cycleMu.Lock()
	ctx, cancel := context.WithCancel(e.ctx)
	e.cancelCycle = cancel
	e.cycleMu.Unlock()

	if e.epoch.Load() != epoch {
		cancel()
		return ctx, false
	}
	return ctx, true
}

func (e *Engine) endCycle() {
	e.cycleMu.Lock()
	if e.cancelCycle != nil {
		e.cancelCycle()
		e.cancelCycle = nil
	}
	e.cycleMu.Unlock()
}

// interrupt cancels whatever the worker is doing and wakes it.
func (e *Engine) interrupt() {
	e.epoch.Add(1)

	e.cycleMu.Lock()
	if e.cancelCycle != nil {
		e.cancelCycle()
	}
	e.cycleMu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// playUntilDone polls the voice until it stops on its own (true) or the
// cycle is cancelled (false).
func (e *Engine) playUntilDone(ctx context.Context) bool {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		state := e.session.Poll()
		if state == VoicePlaying {
			e.emitSpectrum()
		}
		if state == VoiceStopped {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (e *Engine) emitSpectrum() {
	e.mu.RLock()
	cb := e.onSpectrum
	e.mu.RUnlock()
	if cb == nil {
		return
	}

	window, channels, ok := e.session.SpectrumWindow()
	if !ok {
		return
	}
	if bins, ok := e.analyzer.Analyze(window, channels); ok {
		cb(bins)
	}
}

func (e *Engine) trackStarted(path string, decoded *DecodedAudio, logger zerolog.Logger) {
	e.mu.Lock()
	e.currentPath = path
	onTrackChange := e.onTrackChange
	metadataFunc := e.metadataFunc
	session := e.mediaSession
	e.mu.Unlock()

	logger.Info().
		Float64("duration", decoded.Duration()).
		Int("sampleRate", decoded.SampleRate).
		Msg("playing track")

	if session != nil {
		meta := &TrackMetadata{Title: scanner.TitleFromPath(path)}
		if metadataFunc != nil {
			if m := metadataFunc(path); m != nil {
				meta = m
			}
		}
		if err := session.UpdateMetadata(media.Metadata{
			Title:    meta.Title,
			Artist:   meta.Artist,
			Album:    meta.Album,
			Duration: seconds(decoded.Duration()),
			ArtPath:  meta.ArtPath,
		}); err != nil {
			logger.Debug().Err(err).Msg("media session metadata update failed")
		}
	}
	e.publishState()

	if onTrackChange != nil {
		onTrackChange(path)
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// SetPlaylist replaces the playlist and starts playing entry start. An
// out-of-range start plays the first entry; an empty list stops playback.
func (e *Engine) SetPlaylist(paths []string, start int) {
	e.playlist.Set(paths, start)
	e.session.reset()
	e.resumeAt.Store(0)
	e.armed.Store(true)
	e.interrupt()
	e.logger.Info().Int("tracks", len(paths)).Int("start", start).Msg("playlist replaced")
}

// AddFile appends paths not already in the playlist and returns how many
// were added.
func (e *Engine) AddFile(paths ...string) int {
	added := e.playlist.Add(paths...)
	if added > 0 {
		e.interruptIdle()
	}
	return added
}

// interruptIdle wakes an idle worker without cancelling a track in progress.
func (e *Engine) interruptIdle() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Play resumes a paused track, or restarts the current entry from the last
// known position after Stop. After Stop the buffer may still be loaded until
// the worker releases it, so a stopped engine always reloads.
func (e *Engine) Play() {
	if !e.armed.Load() {
		e.resumeAt.Store(e.session.Position())
		e.armed.Store(true)
		e.interrupt()
		return
	}
	if e.session.Play() {
		e.publishState()
	}
}

// Pause suspends output, keeping the position.
func (e *Engine) Pause() {
	e.session.Pause()
	e.publishState()
}

// PlayPause toggles between Play and Pause.
func (e *Engine) PlayPause() {
	if e.session.IsPlaying() {
		e.Pause()
		return
	}
	e.Play()
}

// Stop halts playback and releases the decoded buffer. The position is
// kept so a later Play resumes there.
func (e *Engine) Stop() {
	e.armed.Store(false)
	e.session.playing.Store(false)
	e.interrupt()
	e.publishState()
}

// Next moves to the following entry (a random one in shuffle mode) and
// plays it. It is a no-op on an empty playlist.
func (e *Engine) Next() {
	if !e.playlist.Next() {
		return
	}
	e.changeTrack()
}

// Prev moves to the preceding entry and plays it. It is a no-op on an
// empty playlist.
func (e *Engine) Prev() {
	if !e.playlist.Prev() {
		return
	}
	e.changeTrack()
}

// PlayIndex jumps to entry i and plays it.
func (e *Engine) PlayIndex(i int) bool {
	if !e.playlist.SetIndex(i) {
		return false
	}
	e.changeTrack()
	return true
}

// Remove deletes playlist entry i. Removing the playing entry moves on to
// the entry that took its place.
func (e *Engine) Remove(i int) bool {
	ok, wasCurrent := e.playlist.Remove(i)
	if !ok {
		return false
	}
	if wasCurrent && e.armed.Load() {
		e.changeTrack()
	}
	return true
}

func (e *Engine) changeTrack() {
	e.session.playing.Store(false)
	e.resumeAt.Store(0)
	e.armed.Store(true)
	e.interrupt()
}

// Seek moves playback to seconds, clamped to [0, duration]. While stopped
// it sets where the next Play resumes.
func (e *Engine) Seek(seconds float64) {
	pos := e.session.Seek(seconds)
	if !e.session.Loaded() {
		e.resumeAt.Store(pos)
	}
	e.publishState()
}

// SetVolume sets output gain, clamped to [0, 2].
func (e *Engine) SetVolume(v float64) {
	v = e.session.SetVolume(v)

	e.mu.RLock()
	session := e.mediaSession
	e.mu.RUnlock()
	if session != nil {
		session.UpdateVolume(v)
	}
}

// Shuffle enables or disables random next-track selection.
func (e *Engine) Shuffle(enabled bool) {
	e.playlist.SetShuffle(enabled)
	e.mu.RLock()
	session := e.mediaSession
	e.mu.RUnlock()
	if session != nil {
		session.UpdateShuffle(enabled)
	}
}

// Repeat enables or disables replaying the current track at its end.
func (e *Engine) Repeat(enabled bool) {
	e.playlist.SetRepeat(enabled)
	e.mu.RLock()
	session := e.mediaSession
	e.mu.RUnlock()
	if session != nil {
		session.UpdateLoopStatus(loopStatus(enabled))
	}
}

func loopStatus(repeat bool) media.LoopStatus {
	if repeat {
		return media.LoopTrack
	}
	return media.LoopNone
}

func (e *Engine) IsPlaying() bool { return e.session.IsPlaying() }

func (e *Engine) Position() float64 { return e.session.Position() }

func (e *Engine) Duration() float64 { return e.session.Duration() }

func (e *Engine) Volume() float64 { return e.session.Volume() }

// CurrentFile returns the path of the most recently loaded track.
func (e *Engine) CurrentFile() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentPath
}

// Playlist returns a copy of the playlist entries.
func (e *Engine) Playlist() []string {
	return e.playlist.Items()
}

// SetSpectrumCallback registers cb to receive spectrum frames from the
// worker while playing. cb must not block; nil unregisters.
func (e *Engine) SetSpectrumCallback(cb SpectrumCallback) {
	e.mu.Lock()
	e.onSpectrum = cb
	e.mu.Unlock()
}

// SetOnTrackChange registers a callback for every track start.
func (e *Engine) SetOnTrackChange(cb TrackChangeCallback) {
	e.mu.Lock()
	e.onTrackChange = cb
	e.mu.Unlock()
}

// SetMetadataFunc sets how track metadata is resolved for media sessions.
func (e *Engine) SetMetadataFunc(fn MetadataFunc) {
	e.mu.Lock()
	e.metadataFunc = fn
	e.mu.Unlock()
}

// SetMediaSession attaches an OS media session and routes its commands here.
func (e *Engine) SetMediaSession(session media.Session) {
	e.mu.Lock()
	e.mediaSession = session
	e.mu.Unlock()

	if session == nil {
		return
	}
	session.SetCommandHandler(e)
	session.UpdateShuffle(e.playlist.Shuffle())
	session.UpdateLoopStatus(loopStatus(e.playlist.Repeat()))
	session.UpdateVolume(e.session.Volume())
	e.publishState()
}

// MediaPosition reports the live playhead to media sessions.
func (e *Engine) MediaPosition() time.Duration {
	return seconds(e.session.Position())
}

// Status returns a snapshot of the playback state.
func (e *Engine) Status() Status {
	index, count := e.playlist.Position()
	return Status{
		State:    e.state(),
		Path:     e.CurrentFile(),
		Index:    index,
		Count:    count,
		Position: e.session.Position(),
		Duration: e.session.Duration(),
		Volume:   e.session.Volume(),
		Shuffle:  e.playlist.Shuffle(),
		Repeat:   e.playlist.Repeat(),
	}
}

func (e *Engine) state() PlaybackState {
	switch {
	case !e.armed.Load():
		return StateStopped
	case e.session.IsPlaying():
		return StatePlaying
	case e.session.Loaded():
		return StatePaused
	default:
		return StateStopped
	}
}

func (e *Engine) publishState() {
	e.mu.RLock()
	session := e.mediaSession
	e.mu.RUnlock()
	if session == nil {
		return
	}
	if err := session.UpdatePlaybackState(stateToMediaState(e.state()), seconds(e.session.Position())); err != nil {
		e.logger.Debug().Err(err).Msg("media session state update failed")
	}
}

func stateToMediaState(state PlaybackState) media.PlaybackState {
	switch state {
	case StatePlaying:
		return media.StatePlaying
	case StatePaused:
		return media.StatePaused
	default:
		return media.StateStopped
	}
}

// OnCommand implements media.CommandHandler for MPRIS integration
func (e *Engine) OnCommand(cmd media.Command, data interface{}) error {
	if cmd != media.CmdSeek && cmd != media.CmdSeekBy {
		e.logger.Debug().Str("command", string(cmd)).Msg("received media command")
	}

	switch cmd {
	case media.CmdPlay:
		e.Play()
	case media.CmdPause:
		e.Pause()
	case media.CmdPlayPause:
		e.PlayPause()
	case media.CmdStop:
		e.Stop()
	case media.CmdNext:
		e.Next()
	case media.CmdPrevious:
		e.Prev()
	case media.CmdSeek:
		pos, ok := data.(time.Duration)
		if !ok {
			return fmt.Errorf("seek: unexpected argument %T", data)
		}
		e.Seek(pos.Seconds())
	case media.CmdSeekBy:
		offset, ok := data.(time.Duration)
		if !ok {
			return fmt.Errorf("seek by: unexpected argument %T", data)
		}
		e.Seek(e.session.Position() + offset.Seconds())
	case media.CmdSetShuffle:
		enabled, ok := data.(bool)
		if !ok {
			return fmt.Errorf("shuffle: unexpected argument %T", data)
		}
		e.Shuffle(enabled)
	case media.CmdSetLoopStatus:
		status, ok := data.(media.LoopStatus)
		if !ok {
			return fmt.Errorf("loop status: unexpected argument %T", data)
		}
		e.Repeat(status != media.LoopNone)
	case media.CmdSetVolume:
		v, ok := data.(float64)
		if !ok {
			return fmt.Errorf("volume: unexpected argument %T", data)
		}
		e.SetVolume(v)
	default:
		return fmt.Errorf("unsupported media command: %s", cmd)
	}
	return nil
}

// Close stops the worker, waits for it to exit and releases the output
// device. Calling Close more than once is safe.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.cancel()
		e.interrupt()
		<-e.done

		e.mu.Lock()
		e.onSpectrum = nil
		e.onTrackChange = nil
		e.mu.Unlock()

		e.closeErr = errors.Join(e.session.Close(), e.sink.Close())
		e.logger.Info().Msg("engine closed")
	})
	return e.closeErr
}
