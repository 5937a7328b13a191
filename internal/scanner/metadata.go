package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// TrackMetadata contains extracted audio metadata
type TrackMetadata struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Genre  string `json:"genre,omitempty"`
	Year   int    `json:"year,omitempty"`
	Track  int    `json:"track,omitempty"`
	Format string `json:"format,omitempty"`
	// HasPicture is set when the file embeds cover art.
	HasPicture bool `json:"hasPicture,omitempty"`
}

// ReadMetadata reads the tags of path. Files without readable tags still
// get a title from the file name, with the error returned alongside.
func ReadMetadata(path string) (*TrackMetadata, error) {
	meta := &TrackMetadata{}
	defer func() {
		if meta.Title == "" {
			meta.Title = TitleFromPath(path)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return meta, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return meta, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}

	meta.Title = strings.TrimSpace(m.Title())
	meta.Artist = strings.TrimSpace(m.Artist())
	if meta.Artist == "" {
		meta.Artist = strings.TrimSpace(m.AlbumArtist())
	}
	meta.Album = strings.TrimSpace(m.Album())
	meta.Genre = strings.TrimSpace(m.Genre())
	meta.Year = m.Year()
	meta.Track, _ = m.Track()
	meta.Format = string(m.FileType())
	meta.HasPicture = m.Picture() != nil
	return meta, nil
}

// TitleFromPath is the file name without its extension.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
