package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/austinkregel/local-media/spindle/internal/audio"
	"github.com/austinkregel/local-media/spindle/internal/scanner"
)

var (
	stateStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

var barLevels = []rune("▁▂▃▄▅▆▇█")

// titleCache keeps the tag title of the last track shown.
type titleCache struct {
	path  string
	value string
}

func newTitleCache() *titleCache {
	return &titleCache{}
}

func (c *titleCache) title(path string) string {
	if path == "" {
		return ""
	}
	if path != c.path {
		meta, _ := scanner.ReadMetadata(path)
		c.path = path
		c.value = meta.Title
		if meta.Artist != "" {
			c.value = meta.Artist + " - " + meta.Title
		}
	}
	return c.value
}

func stateIcon(state audio.PlaybackState) string {
	switch state {
	case audio.StatePlaying:
		return "▶"
	case audio.StatePaused:
		return "⏸"
	default:
		return "■"
	}
}

// formatTime renders seconds as m:ss.
func formatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// renderStatus builds the one-line status shown while playing, fitted to
// width cells.
func renderStatus(st audio.Status, title string, bins []float64, width int) string {
	if st.Count == 0 {
		return dimStyle.Render("playlist empty")
	}

	flags := ""
	if st.Shuffle {
		flags += " shuffle"
	}
	if st.Repeat {
		flags += " repeat"
	}

	info := fmt.Sprintf(" %s / %s  [%d/%d]  vol %d%%%s",
		formatTime(st.Position), formatTime(st.Duration),
		st.Index+1, st.Count, int(math.Round(st.Volume*100)), flags)

	head := stateStyle.Render(stateIcon(st.State)) + " "
	room := width - lipgloss.Width(head) - lipgloss.Width(info) - 1
	if room < 8 {
		return head + dimStyle.Render(info)
	}

	bars := ""
	if barWidth := min(len(bins), room/3); barWidth > 0 {
		bars = " " + barStyle.Render(spectrumBars(bins, barWidth))
		room -= barWidth + 1
	}

	return head + titleStyle.Render(truncate(title, room)) + dimStyle.Render(info) + bars
}

// spectrumBars draws bins as width block characters. Levels are scaled
// against a multiple of the frame RMS so quiet passages stay visible.
func spectrumBars(bins []float64, width int) string {
	if len(bins) == 0 || width <= 0 {
		return ""
	}
	ref := 3 * audio.RMS(bins)
	if ref <= 0 {
		return strings.Repeat(string(barLevels[0]), width)
	}

	var b strings.Builder
	per := float64(len(bins)) / float64(width)
	for i := 0; i < width; i++ {
		start, end := int(float64(i)*per), int(float64(i+1)*per)
		end = min(max(end, start+1), len(bins))
		peak := lo.Max(bins[start:end])
		level := lo.Clamp(peak/ref, 0, 1)
		b.WriteRune(barLevels[int(level*float64(len(barLevels)-1))])
	}
	return b.String()
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
