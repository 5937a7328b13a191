package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestIsAudioFile(t *testing.T) {
	tests := map[string]bool{
		"song.mp3":      true,
		"SONG.FLAC":     true,
		"a/b/track.ogg": true,
		"cover.jpg":     false,
		"notes":         false,
	}
	for path, expected := range tests {
		if got := IsAudioFile(path); got != expected {
			t.Errorf("IsAudioFile(%q): expected %v, got %v", path, expected, got)
		}
	}
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b", "2.mp3"))
	touch(t, filepath.Join(root, "a", "1.flac"))
	touch(t, filepath.Join(root, "a", "cover.jpg"))
	touch(t, filepath.Join(root, ".hidden", "3.mp3"))
	single := filepath.Join(t.TempDir(), "single.wav")
	touch(t, single)

	files, err := Collect(context.Background(), []string{root, single, root, filepath.Join(root, "missing")})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	expected := []string{
		filepath.Join(root, "a", "1.flac"),
		filepath.Join(root, "b", "2.mp3"),
		single,
	}
	if len(files) != len(expected) {
		t.Fatalf("Expected %d files, got %v", len(expected), files)
	}
	for i := range expected {
		if files[i] != expected[i] {
			t.Errorf("File %d: expected %s, got %s", i, expected[i], files[i])
		}
	}
}

func TestCollectCancelled(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "1.mp3"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Collect(ctx, []string{root}); err == nil {
		t.Error("Expected error from cancelled context")
	}
}

func TestReadMetadataFallsBackToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "My Song.mp3")
	touch(t, path)

	meta, err := ReadMetadata(path)
	if err == nil {
		t.Error("Expected tag read error for an untagged file")
	}
	if meta.Title != "My Song" {
		t.Errorf("Expected title from file name, got %q", meta.Title)
	}

	meta, _ = ReadMetadata(filepath.Join(t.TempDir(), "Gone.flac"))
	if meta.Title != "Gone" {
		t.Errorf("Expected title for missing file, got %q", meta.Title)
	}
}

func TestFindAlbumArt(t *testing.T) {
	root := t.TempDir()
	track := filepath.Join(root, "Artist", "Album", "01.mp3")
	touch(t, track)

	if got := FindAlbumArt(track); got != "" {
		t.Errorf("Expected no art, got %s", got)
	}

	artistArt := filepath.Join(root, "Artist", "folder.jpg")
	touch(t, artistArt)
	if got := FindAlbumArt(track); got != artistArt {
		t.Errorf("Expected artist art %s, got %s", artistArt, got)
	}

	albumArt := filepath.Join(root, "Artist", "Album", "cover.png")
	touch(t, albumArt)
	if got := FindAlbumArt(track); got != albumArt {
		t.Errorf("Expected album art %s, got %s", albumArt, got)
	}

	if got := FindAlbumArt(""); got != "" {
		t.Errorf("Expected empty result for empty path, got %s", got)
	}
}
