package onlineplayers

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultNameWidth is the width of the name column left of the avatars.
	DefaultNameWidth = 1920
	// DefaultNameRightMargin separates the end of a name from its avatar.
	DefaultNameRightMargin = 15
	// DefaultShadowOffset is the diagonal offset of each outline copy.
	DefaultShadowOffset = 5
)

// ErrAvatarMissing is returned by Compositor.Build when any avatar could not be
// resolved. No partial board is produced.
var ErrAvatarMissing = errors.New("avatar missing")

// AvatarSource resolves a player's avatar image.
type AvatarSource interface {
	Fetch(ctx context.Context, playerID string) (image.Image, error)
}

// AvatarFunc adapts a function to AvatarSource.
type AvatarFunc func(ctx context.Context, playerID string) (image.Image, error)

// Fetch implements AvatarSource.
func (f AvatarFunc) Fetch(ctx context.Context, playerID string) (image.Image, error) {
	return f(ctx, playerID)
}

// Row is the vertical band one player occupies on the board.
type Row struct {
	Top    int
	Height int
}

// Center returns the vertical middle of the band.
func (r Row) Center() int {
	return r.Top + r.Height/2
}

// BoardLayout holds the computed canvas size and each player's band.
type BoardLayout struct {
	Width  int
	Height int
	Rows   []Row
}

// LayoutBoard stacks avatars of the given sizes top to bottom. Every avatar is
// followed by padding, so the height is the sum of avatar heights plus
// padding times the avatar count. The width is the widest avatar plus the
// name column.
func LayoutBoard(sizes []image.Point, padding, nameWidth int) BoardLayout {
	l := BoardLayout{Rows: make([]Row, len(sizes))}
	maxWidth := 0
	y := 0
	for i, s := range sizes {
		l.Rows[i] = Row{Top: y, Height: s.Y}
		y += s.Y + padding
		maxWidth = max(maxWidth, s.X)
	}
	l.Width = maxWidth + nameWidth
	l.Height = y
	return l
}

// Compositor builds boards from players and their avatars.
type Compositor struct {
	avatars         AvatarSource
	padding         int
	nameWidth       int
	nameRightMargin int
	shadow          bool
	shadowOffset    int
	workers         int
	face            font.Face
	fill            color.Color
	outline         color.Color
	log             *zap.Logger
}

// CompositorOption configures a Compositor.
type CompositorOption func(*Compositor)

// WithPadding sets the pixels below each avatar.
func WithPadding(px int) CompositorOption {
	return func(c *Compositor) {
		c.padding = px
	}
}

// WithShadow toggles the outline drawn behind each name.
func WithShadow(enable bool) CompositorOption {
	return func(c *Compositor) {
		c.shadow = enable
	}
}

// WithNameColumn sets the name column width and the right margin of names.
func WithNameColumn(width, rightMargin int) CompositorOption {
	return func(c *Compositor) {
		c.nameWidth = width
		c.nameRightMargin = rightMargin
	}
}

// WithFontFace sets the face names are drawn with.
func WithFontFace(face font.Face) CompositorOption {
	return func(c *Compositor) {
		c.face = face
	}
}

// WithAvatarWorkers bounds the concurrent avatar fetches per board.
func WithAvatarWorkers(n int) CompositorOption {
	return func(c *Compositor) {
		c.workers = n
	}
}

// WithCompositorLogger sets the logger.
func WithCompositorLogger(l *zap.Logger) CompositorOption {
	return func(c *Compositor) {
		c.log = l
	}
}

// NewCompositor creates a Compositor that resolves avatars through avatars.
func NewCompositor(avatars AvatarSource, opts ...CompositorOption) (*Compositor, error) {
	c := &Compositor{
		avatars:         avatars,
		padding:         12,
		nameWidth:       DefaultNameWidth,
		nameRightMargin: DefaultNameRightMargin,
		shadow:          true,
		shadowOffset:    DefaultShadowOffset,
		workers:         1,
		fill:            color.White,
		outline:         color.Black,
		log:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.face == nil {
		face, err := LoadFontFace("", DefaultFontSize, c.log)
		if err != nil {
			return nil, err
		}
		c.face = face
	}
	return c, nil
}

// Build renders players, already in display order, onto a transparent board.
// An empty list yields a 1x1 transparent placeholder. If any avatar cannot be
// resolved Build returns a nil image and an error wrapping ErrAvatarMissing.
func (c *Compositor) Build(ctx context.Context, players []Player) (image.Image, error) {
	if len(players) == 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	}

	avatars, err := c.fetchAll(ctx, players)
	if err != nil {
		c.log.Warn("unable to read an avatar, this may resolve itself by the next update", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAvatarMissing, err)
	}

	sizes := make([]image.Point, len(avatars))
	for i, a := range avatars {
		sizes[i] = a.Bounds().Size()
	}
	layout := LayoutBoard(sizes, c.padding, c.nameWidth)
	c.log.Debug("board layout",
		zap.Int("width", layout.Width),
		zap.Int("height", layout.Height),
		zap.Int("rows", len(layout.Rows)),
	)

	board := image.NewRGBA(image.Rect(0, 0, layout.Width, layout.Height))
	for i, a := range avatars {
		b := a.Bounds()
		dst := image.Rect(c.nameWidth, layout.Rows[i].Top, c.nameWidth+b.Dx(), layout.Rows[i].Top+b.Dy())
		draw.Draw(board, dst, a, b.Min, draw.Src)
	}

	for i, p := range players {
		c.drawName(board, p.Name, layout.Rows[i])
	}
	return board, nil
}

func (c *Compositor) fetchAll(ctx context.Context, players []Player) ([]image.Image, error) {
	avatars := make([]image.Image, len(players))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.workers, 1))
	for i, p := range players {
		i, p := i, p // per-iteration copies for pre-Go 1.22 toolchains
		g.Go(func() error {
			img, err := c.avatars.Fetch(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("player %s (%s): %w", p.Name, p.ID, err)
			}
			avatars[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return avatars, nil
}

// drawName draws name right-anchored at the end of the name column and
// vertically centered on row.
func (c *Compositor) drawName(dst draw.Image, name string, row Row) {
	m := c.face.Metrics()
	width := font.MeasureString(c.face, name)
	dot := fixed.Point26_6{
		X: fixed.I(c.nameWidth-c.nameRightMargin) - width,
		Y: fixed.I(row.Center()) + (m.Ascent-m.Descent)/2,
	}

	if c.shadow {
		off := fixed.I(c.shadowOffset)
		for _, d := range []fixed.Point26_6{
			{X: -off, Y: -off},
			{X: off, Y: -off},
			{X: -off, Y: off},
			{X: off, Y: off},
		} {
			c.text(dst, name, dot.Add(d), c.outline)
		}
	}
	c.text(dst, name, dot, c.fill)
}

func (c *Compositor) text(dst draw.Image, s string, dot fixed.Point26_6, col color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: c.face,
		Dot:  dot,
	}
	d.DrawString(s)
}
