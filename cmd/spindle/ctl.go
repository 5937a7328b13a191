package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"

	"github.com/austinkregel/local-media/spindle/internal/audio"
	"github.com/austinkregel/local-media/spindle/internal/ipc"
)

const ctlTimeout = 5 * time.Second

type ctlParams struct {
	Args      []string `pos:"true" required:"true" help:"Command and its argument: play, pause, toggle, stop, next, prev, status, playlist, spectrum, jump N, remove N, seek SECONDS, volume LEVEL, shuffle on|off, repeat on|off, load PATHS..., add PATHS..."`
	ConfigDir string   `optional:"true" help:"Configuration directory (default: ~/.config/spindle)."`
	Socket    string   `optional:"true" help:"Control socket path (default: per-user runtime path)."`
}

func ctlCmd() *cobra.Command {
	return boa.CmdT[ctlParams]{
		Use:         "ctl",
		Short:       "Control a running player",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *ctlParams, cmd *cobra.Command, args []string) {
			if err := runCtl(params); err != nil {
				fail(err)
			}
		},
	}.ToCobra()
}

func runCtl(params *ctlParams) error {
	socketPath := params.Socket
	if socketPath == "" {
		configMgr, err := loadConfig(params.ConfigDir)
		if err != nil {
			return err
		}
		socketPath = configMgr.SocketPath()
	}

	cmd, data, err := buildRequest(params.Args[0], params.Args[1:])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := ipc.Dial(ctx, socketPath)
	if err != nil {
		return err
	}
	defer client.Close()

	if cmd == ipc.CmdSubscribeSpectrum {
		return client.Spectrum(ctx, func(f ipc.SpectrumFrame) {
			fmt.Print("\r\033[K" + spectrumBars(f.Bins, len(f.Bins)))
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, ctlTimeout)
	defer cancel()

	resp, err := client.Call(callCtx, cmd, data)
	if err != nil {
		return err
	}
	return printResponse(cmd, resp)
}

// buildRequest maps command line words onto a control request.
func buildRequest(word string, args []string) (ipc.CommandType, interface{}, error) {
	switch word {
	case "play", "pause", "stop", "next", "prev", "status", "playlist":
		return ipc.CommandType(word), nil, nil
	case "toggle":
		return ipc.CmdPlayPause, nil, nil
	case "spectrum":
		return ipc.CmdSubscribeSpectrum, nil, nil

	case "jump", "remove":
		if len(args) != 1 {
			return "", nil, fmt.Errorf("%s takes an index", word)
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return "", nil, fmt.Errorf("invalid index %q", args[0])
		}
		return ipc.CommandType(word), ipc.IndexRequest{Index: i}, nil

	case "seek", "volume":
		if len(args) != 1 {
			return "", nil, fmt.Errorf("%s takes a number", word)
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid number %q", args[0])
		}
		if word == "seek" {
			return ipc.CmdSeek, ipc.SeekRequest{Position: v}, nil
		}
		return ipc.CmdVolume, ipc.VolumeRequest{Level: v}, nil

	case "shuffle", "repeat":
		if len(args) != 1 {
			return "", nil, fmt.Errorf("%s takes on or off", word)
		}
		var enabled bool
		switch args[0] {
		case "on", "true", "1":
			enabled = true
		case "off", "false", "0":
		default:
			return "", nil, fmt.Errorf("%s takes on or off, got %q", word, args[0])
		}
		return ipc.CommandType(word), ipc.ToggleRequest{Enabled: enabled}, nil

	case "load", "add":
		if len(args) == 0 {
			return "", nil, fmt.Errorf("%s takes at least one path", word)
		}
		// The player resolves paths from its own working directory.
		paths := make([]string, 0, len(args))
		for _, p := range args {
			abs, err := filepath.Abs(p)
			if err != nil {
				return "", nil, err
			}
			paths = append(paths, abs)
		}
		if word == "load" {
			return ipc.CmdSetPlaylist, ipc.SetPlaylistRequest{Paths: paths}, nil
		}
		return ipc.CmdAdd, ipc.AddRequest{Paths: paths}, nil
	}

	return "", nil, fmt.Errorf("unknown command %q", word)
}

func printResponse(cmd ipc.CommandType, resp *ipc.Response) error {
	switch cmd {
	case ipc.CmdGetPlaylist:
		var pl ipc.PlaylistResponse
		if err := json.Unmarshal(resp.Data, &pl); err != nil {
			return err
		}
		for i, item := range pl.Items {
			marker := "  "
			if i == pl.Index {
				marker = "> "
			}
			fmt.Printf("%s%3d  %s\n", marker, i, item)
		}
		return nil

	case ipc.CmdAdd:
		var added ipc.AddResponse
		if err := json.Unmarshal(resp.Data, &added); err != nil {
			return err
		}
		fmt.Printf("added %d tracks\n", added.Added)
		return nil
	}

	var st audio.Status
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		return err
	}
	fmt.Println(renderStatus(st, newTitleCache().title(st.Path), nil, 100))
	return nil
}
