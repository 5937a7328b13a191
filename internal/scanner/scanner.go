// Package scanner finds audio files and reads their tags.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// SupportedExtensions are the audio file extensions we recognize
var SupportedExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".oga":  true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
	".wma":  true,
	".alac": true,
	".opus": true,
}

// IsAudioFile reports whether path has a supported extension.
func IsAudioFile(path string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Collect expands roots into a sorted, de-duplicated list of audio files.
// Directories are walked recursively; files are kept if their extension is
// supported. Unreadable entries are logged and skipped. It returns early
// with ctx.Err() if ctx ends.
func Collect(ctx context.Context, roots []string) ([]string, error) {
	logger := log.With().Str("component", "scanner").Logger()
	var files []string

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			logger.Warn().Err(err).Str("path", root).Msg("skipping path")
			continue
		}

		info, err := os.Stat(abs)
		if err != nil {
			logger.Warn().Err(err).Str("path", root).Msg("skipping path")
			continue
		}
		if !info.IsDir() {
			if IsAudioFile(abs) {
				files = append(files, abs)
			}
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable entry")
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			// Skip hidden directories
			if d.IsDir() && path != abs && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !d.IsDir() && IsAudioFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	files = lo.Uniq(files)
	sort.Strings(files)
	return files, nil
}
