package onlineplayers

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func TestLayoutBoard(t *testing.T) {
	tests := []struct {
		name       string
		sizes      []image.Point
		padding    int
		wantWidth  int
		wantHeight int
		wantTops   []int
	}{
		{
			name:       "two equal avatars",
			sizes:      []image.Point{{64, 64}, {64, 64}},
			padding:    12,
			wantWidth:  64 + 100,
			wantHeight: 64 + 64 + 2*12,
			wantTops:   []int{0, 76},
		},
		{
			name:       "mixed sizes",
			sizes:      []image.Point{{8, 8}, {32, 32}, {16, 16}},
			padding:    4,
			wantWidth:  32 + 100,
			wantHeight: 8 + 32 + 16 + 3*4,
			wantTops:   []int{0, 12, 48},
		},
		{
			name:       "no padding",
			sizes:      []image.Point{{10, 10}},
			padding:    0,
			wantWidth:  110,
			wantHeight: 10,
			wantTops:   []int{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := LayoutBoard(tt.sizes, tt.padding, 100)
			assert.Equal(t, tt.wantWidth, l.Width)
			assert.Equal(t, tt.wantHeight, l.Height)
			require.Len(t, l.Rows, len(tt.wantTops))
			for i, top := range tt.wantTops {
				assert.Equal(t, top, l.Rows[i].Top, "row %d", i)
				assert.Equal(t, tt.sizes[i].Y, l.Rows[i].Height, "row %d", i)
			}
		})
	}
}

func TestRowCenter(t *testing.T) {
	assert.Equal(t, 76+32, Row{Top: 76, Height: 64}.Center())
}

func TestBuildEmptyIsPlaceholder(t *testing.T) {
	c, err := NewCompositor(newFakeAvatars(nil))
	require.NoError(t, err)

	img, err := c.Build(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, image.Pt(1, 1), img.Bounds().Size())
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a)
}

func TestBuildOrdersRowsByName(t *testing.T) {
	avatars := newFakeAvatars(map[string]image.Image{
		"a": solid(64, red),
		"b": solid(64, blue),
	})
	c, err := NewCompositor(avatars, WithPadding(12), WithNameColumn(400, 15))
	require.NoError(t, err)

	players := []Player{{ID: "a", Name: "Zed"}, {ID: "b", Name: "Amy"}}
	SortPlayers(players)

	img, err := c.Build(context.Background(), players)
	require.NoError(t, err)
	assert.Equal(t, 400+64, img.Bounds().Dx())
	assert.Equal(t, 64+64+2*12, img.Bounds().Dy())

	// Amy (blue) is the top row, Zed (red) the second.
	assert.Equal(t, color.RGBAModel.Convert(blue), color.RGBAModel.Convert(img.At(400+10, 10)))
	assert.Equal(t, color.RGBAModel.Convert(red), color.RGBAModel.Convert(img.At(400+10, 76+10)))

	// padding rows stay transparent
	_, _, _, a := img.At(400+10, 64+5).RGBA()
	assert.Zero(t, a)
}

func TestBuildFailsWhenAnyAvatarMissing(t *testing.T) {
	avatars := newFakeAvatars(map[string]image.Image{
		"a": solid(64, red),
		"b": solid(64, blue),
	})
	c, err := NewCompositor(avatars, WithAvatarWorkers(4))
	require.NoError(t, err)

	players := []Player{
		{ID: "a", Name: "Amy"},
		{ID: "b", Name: "Bob"},
		{ID: "gone", Name: "Cat"},
	}
	img, err := c.Build(context.Background(), players)
	assert.Nil(t, img)
	require.ErrorIs(t, err, ErrAvatarMissing)
}

func TestBuildConcurrentFetchKeepsOrder(t *testing.T) {
	images := map[string]image.Image{}
	var players []Player
	for i, name := range []string{"Ann", "Ben", "Cal", "Dee", "Eve", "Fay"} {
		id := string(rune('a' + i))
		images[id] = solid(16+i*8, color.RGBA{R: uint8(40 * i), G: 10, A: 255})
		players = append(players, Player{ID: id, Name: name})
	}
	c, err := NewCompositor(newFakeAvatars(images), WithAvatarWorkers(3), WithPadding(2), WithNameColumn(200, 15))
	require.NoError(t, err)

	img, err := c.Build(context.Background(), players)
	require.NoError(t, err)

	y := 0
	for _, p := range players {
		want := images[p.ID]
		assert.Equal(t,
			color.RGBAModel.Convert(want.At(0, 0)),
			color.RGBAModel.Convert(img.At(200+1, y+1)),
			"player %s", p.Name,
		)
		y += want.Bounds().Dy() + 2
	}
	assert.Equal(t, y, img.Bounds().Dy())
}

// nameColumnInk reports whether the name column of rgba has any opaque-ish
// pixel, and whether any of them is darker than premultiplied white.
func nameColumnInk(img image.Image, nameWidth int) (ink, dark bool) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < nameWidth; x++ {
			r, _, _, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			ink = true
			if r < a {
				dark = true
			}
		}
	}
	return ink, dark
}

func TestBuildDrawsNames(t *testing.T) {
	avatars := newFakeAvatars(map[string]image.Image{"a": solid(64, red)})
	players := []Player{{ID: "a", Name: "Steve"}}

	t.Run("shadow", func(t *testing.T) {
		c, err := NewCompositor(avatars, WithShadow(true), WithNameColumn(600, 15))
		require.NoError(t, err)
		img, err := c.Build(context.Background(), players)
		require.NoError(t, err)

		ink, dark := nameColumnInk(img, 600)
		assert.True(t, ink)
		assert.True(t, dark, "outline should be drawn")
	})

	t.Run("no shadow", func(t *testing.T) {
		c, err := NewCompositor(avatars, WithShadow(false), WithNameColumn(600, 15))
		require.NoError(t, err)
		img, err := c.Build(context.Background(), players)
		require.NoError(t, err)

		ink, dark := nameColumnInk(img, 600)
		assert.True(t, ink)
		assert.False(t, dark, "only white text expected")
	})
}

// inkBounds returns the bounding box of non-transparent pixels of img inside r.
func inkBounds(img image.Image, r image.Rectangle) image.Rectangle {
	var box image.Rectangle
	found := false
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a == 0 {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if !found {
				box, found = px, true
				continue
			}
			box = box.Union(px)
		}
	}
	return box
}

func TestBuildPlacesNamesBesideAvatars(t *testing.T) {
	const (
		nameWidth = 600
		margin    = 15
		padding   = 12
	)
	avatars := newFakeAvatars(map[string]image.Image{
		"a": solid(64, red),
		"b": solid(64, blue),
	})
	c, err := NewCompositor(avatars, WithShadow(false), WithPadding(padding), WithNameColumn(nameWidth, margin))
	require.NoError(t, err)

	players := []Player{{ID: "a", Name: "Alex"}, {ID: "b", Name: "Steve"}}
	img, err := c.Build(context.Background(), players)
	require.NoError(t, err)

	layout := LayoutBoard([]image.Point{{64, 64}, {64, 64}}, padding, nameWidth)
	for i, row := range layout.Rows {
		band := image.Rect(0, row.Top, nameWidth, row.Top+row.Height+padding)
		box := inkBounds(img, band)
		require.False(t, box.Empty(), "row %d has no name", i)

		mid := float64(box.Min.Y+box.Max.Y) / 2
		assert.InDelta(t, float64(row.Center()), mid, 2, "row %d vertical center", i)

		right := box.Max.X - 1
		assert.LessOrEqual(t, right, nameWidth-margin, "row %d right edge", i)
		assert.GreaterOrEqual(t, right, nameWidth-margin-10, "row %d right edge", i)
	}
}

func TestLoadFontFaceFallsBack(t *testing.T) {
	face, err := LoadFontFace("does-not-exist.ttf", DefaultFontSize, nil)
	require.NoError(t, err)
	require.NotNil(t, face)
	assert.Positive(t, face.Metrics().Height.Ceil())
}
