package onlineplayers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
)

func solid(size int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fakeAvatars serves fixed images by player id and counts lookups.
type fakeAvatars struct {
	mu     sync.Mutex
	images map[string]image.Image
	calls  map[string]int
}

func newFakeAvatars(images map[string]image.Image) *fakeAvatars {
	return &fakeAvatars{images: images, calls: make(map[string]int)}
}

func (f *fakeAvatars) Fetch(ctx context.Context, id string) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	img, ok := f.images[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrAvatarNotFound)
	}
	return img, nil
}

// countingCloser records how often Close was called.
type countingCloser struct {
	mu sync.Mutex
	n  int
}

func (c *countingCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

func (c *countingCloser) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
