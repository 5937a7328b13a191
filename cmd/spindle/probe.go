package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/austinkregel/local-media/spindle/internal/audio"
	"github.com/austinkregel/local-media/spindle/internal/scanner"
)

type probeParams struct {
	File     string `pos:"true" required:"true" help:"Audio file to inspect."`
	NoFFmpeg bool   `optional:"true" help:"Decode with the built-in decoders only."`
}

func probeCmd() *cobra.Command {
	return boa.CmdT[probeParams]{
		Use:         "probe",
		Short:       "Show the tags and decoded format of a file",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *probeParams, cmd *cobra.Command, args []string) {
			setupLogging(false, true)
			if err := runProbe(cmd.Context(), params); err != nil {
				fail(err)
			}
		},
	}.ToCobra()
}

func runProbe(ctx context.Context, params *probeParams) error {
	if ctx == nil {
		ctx = context.Background()
	}

	meta, tagErr := scanner.ReadMetadata(params.File)

	pipeline := audio.NewPipeline(audio.PipelineConfig{FFmpegFallback: !params.NoFFmpeg})
	decoded, err := pipeline.Decode(ctx, params.File)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})

	t.AppendRow(table.Row{"Path", params.File})
	t.AppendRow(table.Row{"Title", meta.Title})
	if tagErr == nil {
		t.AppendRow(table.Row{"Artist", meta.Artist})
		t.AppendRow(table.Row{"Album", meta.Album})
		t.AppendRow(table.Row{"Genre", meta.Genre})
		t.AppendRow(table.Row{"Year", numberOrBlank(meta.Year)})
		t.AppendRow(table.Row{"Track", numberOrBlank(meta.Track)})
		t.AppendRow(table.Row{"Tag format", meta.Format})
		t.AppendRow(table.Row{"Embedded art", meta.HasPicture})
	} else {
		t.AppendRow(table.Row{"Tags", tagErr.Error()})
	}
	t.AppendRow(table.Row{"Folder art", scanner.FindAlbumArt(params.File)})

	t.AppendSeparator()
	t.AppendRow(table.Row{"Sample rate", fmt.Sprintf("%d Hz", decoded.SampleRate)})
	t.AppendRow(table.Row{"Channels", decoded.Channels})
	t.AppendRow(table.Row{"Frames", decoded.Frames()})
	t.AppendRow(table.Row{"Duration", formatTime(decoded.Duration())})

	t.Render()
	return nil
}

func numberOrBlank(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}
