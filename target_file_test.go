package onlineplayers

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveImageRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	img := image.NewRGBA(image.Rect(0, 0, 37, 140))

	require.NoError(t, SaveImage(img, dir, "board.png"))

	f, err := os.Open(filepath.Join(dir, "board.png"))
	require.NoError(t, err)
	defer f.Close()
	got, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Size(), got.Bounds().Size())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSaveImageUnreachable(t *testing.T) {
	// a regular file where the directory should be
	blocker := filepath.Join(t.TempDir(), "share")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := SaveImage(image.NewRGBA(image.Rect(0, 0, 1, 1)), filepath.Join(blocker, "out"), "board.png")
	assert.Error(t, err)
}

func TestFileTargetSkipsUnchangedBoard(t *testing.T) {
	dir := t.TempDir()
	target := NewFileTarget(dir, "")
	path := filepath.Join(dir, DefaultImageName)
	assert.Equal(t, path, target.Path())

	frame := &Frame{Board: image.NewRGBA(image.Rect(0, 0, 1, 1)), RenderedAt: time.Now()}
	require.NoError(t, target.Update(context.Background(), frame))
	require.FileExists(t, path)

	require.NoError(t, os.WriteFile(path, []byte("sentinel"), 0o644))
	require.NoError(t, target.Update(context.Background(), frame))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sentinel", string(raw), "identical board must not be rewritten")

	require.NoError(t, os.Remove(path))
	require.NoError(t, target.Update(context.Background(), frame))
	require.FileExists(t, path)

	bigger := &Frame{Board: image.NewRGBA(image.Rect(0, 0, 2, 2)), RenderedAt: time.Now()}
	require.NoError(t, target.Update(context.Background(), bigger))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Width)
}

func TestFileTargetReportsWriteFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "share")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	target := NewFileTarget(blocker, "board.png")
	err := target.Update(context.Background(), &Frame{Board: image.NewRGBA(image.Rect(0, 0, 1, 1))})
	assert.Error(t, err)
}
