package scanner

import (
	"os"
	"path/filepath"
)

// FindAlbumArt looks for album art in the track's directory or parent directory.
// It checks for common art filenames: folder.jpg, cover.jpg, album.jpg, etc.
// Returns the path to the art file if found, or empty string if not found.
func FindAlbumArt(trackPath string) string {
	if trackPath == "" {
		return ""
	}

	dir := filepath.Dir(trackPath)
	for _, name := range albumArtNames {
		artPath := filepath.Join(dir, name)
		if _, err := os.Stat(artPath); err == nil {
			return artPath
		}
	}

	// Artist folders usually only carry folder.*
	parentDir := filepath.Dir(dir)
	for _, name := range artistArtNames {
		artPath := filepath.Join(parentDir, name)
		if _, err := os.Stat(artPath); err == nil {
			return artPath
		}
	}

	return ""
}

var albumArtNames = []string{
	"folder.jpg", "folder.png",
	"cover.jpg", "cover.png",
	"album.jpg", "album.png",
	"front.jpg", "front.png",
	"Folder.jpg", "Folder.png",
	"Cover.jpg", "Cover.png",
}

var artistArtNames = []string{"folder.jpg", "folder.png", "Folder.jpg", "Folder.png"}
