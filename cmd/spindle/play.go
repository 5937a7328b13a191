package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/austinkregel/local-media/spindle/internal/audio"
	"github.com/austinkregel/local-media/spindle/internal/config"
	"github.com/austinkregel/local-media/spindle/internal/ipc"
	"github.com/austinkregel/local-media/spindle/internal/media"
	"github.com/austinkregel/local-media/spindle/internal/scanner"
)

const statusRefresh = 100 * time.Millisecond

type playParams struct {
	Paths     []string `pos:"true" optional:"true" help:"Files or directories to queue."`
	Start     int      `optional:"true" help:"Playlist index to start at." default:"0"`
	ConfigDir string   `optional:"true" help:"Configuration directory (default: ~/.config/spindle)."`
	Socket    string   `optional:"true" help:"Control socket path (default: per-user runtime path)."`
	Debug     bool     `short:"d" optional:"true" help:"Enable debug logging."`
}

func playCmd() *cobra.Command {
	return boa.CmdT[playParams]{
		Use:         "play",
		Short:       "Play files and serve the control socket",
		Long:        "Queues the given files and directories, starts playback and keeps running until interrupted.\nOther spindle commands talk to it through the control socket.",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *playParams, cmd *cobra.Command, args []string) {
			interactive := term.IsTerminal(int(os.Stdout.Fd()))
			setupLogging(params.Debug, interactive)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runPlay(ctx, params, interactive); err != nil {
				fail(err)
			}
		},
	}.ToCobra()
}

func loadConfig(dir string) (*config.Manager, error) {
	if dir == "" {
		var err error
		if dir, err = config.DefaultDir(); err != nil {
			return nil, err
		}
	}
	mgr := config.NewManager(dir)
	if err := mgr.Load(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func runPlay(ctx context.Context, params *playParams, interactive bool) error {
	configMgr, err := loadConfig(params.ConfigDir)
	if err != nil {
		return err
	}
	cfg := configMgr.Get()

	mediaSession := openMediaSession(cfg.Behavior.MPRIS)
	defer mediaSession.Close()

	engine, err := audio.New(audio.Options{
		DeviceSampleRate: cfg.Audio.DeviceSampleRate,
		ResampleQuality:  cfg.Audio.ResampleQuality,
		FFmpegFallback:   cfg.Audio.FFmpegFallback,
		Volume:           cfg.Audio.DefaultVolume,
		PollInterval:     cfg.Audio.PollInterval(),
		Shuffle:          cfg.Behavior.Shuffle,
		Repeat:           cfg.Behavior.Repeat,
	})
	if err != nil {
		return fmt.Errorf("failed to start audio engine: %w", err)
	}
	defer engine.Close()

	engine.SetMetadataFunc(trackMetadata)
	engine.SetMediaSession(mediaSession)

	socketPath := params.Socket
	if socketPath == "" {
		socketPath = configMgr.SocketPath()
	}
	server := ipc.NewServer(socketPath, engine)
	if err := server.Listen(); err != nil {
		return err
	}

	var latest atomic.Pointer[[]float64]
	engine.SetSpectrumCallback(func(bins []float64) {
		server.PushSpectrum(bins)
		latest.Store(&bins)
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		server.Serve(ctx)
	}()
	go func() {
		defer wg.Done()
		err := configMgr.Watch(ctx, func(c config.Config) {
			engine.SetVolume(c.Audio.DefaultVolume)
			engine.Shuffle(c.Behavior.Shuffle)
			engine.Repeat(c.Behavior.Repeat)
		})
		if err != nil {
			log.Debug().Err(err).Msg("config changes will not be picked up")
		}
	}()

	paths, err := scanner.Collect(ctx, params.Paths)
	if err != nil {
		log.Warn().Err(err).Msg("some paths could not be read")
	}
	if len(paths) > 0 {
		engine.SetPlaylist(paths, params.Start)
		log.Info().Int("tracks", len(paths)).Msg("playlist loaded")
	}

	if interactive {
		showStatus(ctx, engine, &latest)
	} else {
		<-ctx.Done()
	}

	wg.Wait()
	return nil
}

func openMediaSession(enabled bool) media.Session {
	if !enabled {
		return media.NewNoOpSession()
	}
	session, err := media.NewSession()
	if err != nil {
		log.Warn().Err(err).Msg("continuing without OS media integration")
		return media.NewNoOpSession()
	}
	return session
}

func trackMetadata(path string) *audio.TrackMetadata {
	meta, err := scanner.ReadMetadata(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("no tags")
	}
	return &audio.TrackMetadata{
		Title:   meta.Title,
		Artist:  meta.Artist,
		Album:   meta.Album,
		ArtPath: scanner.FindAlbumArt(path),
	}
}

// showStatus redraws the status line until ctx is done.
func showStatus(ctx context.Context, engine *audio.Engine, latest *atomic.Pointer[[]float64]) {
	ticker := time.NewTicker(statusRefresh)
	defer ticker.Stop()

	titles := newTitleCache()
	for {
		select {
		case <-ctx.Done():
			fmt.Print("\r\033[K")
			return
		case <-ticker.C:
			width, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil {
				width = 80
			}
			st := engine.Status()
			var bins []float64
			if st.State == audio.StatePlaying {
				if p := latest.Load(); p != nil {
					bins = *p
				}
			}
			fmt.Print("\r\033[K" + renderStatus(st, titles.title(st.Path), bins, width))
		}
	}
}
