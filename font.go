package onlineplayers

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultFontSize is the point size player names are drawn at.
const DefaultFontSize = 50

// LoadFontFace loads the font at path. When path is empty or unreadable the
// embedded Go Regular face is used instead and a warning is logged.
func LoadFontFace(path string, size float64, log *zap.Logger) (font.Face, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path != "" {
		face, err := parseFace(path, size)
		if err == nil {
			log.Debug("loaded font", zap.String("path", path))
			return face, nil
		}
		log.Warn("unable to load font, falling back to Go Regular",
			zap.String("path", path),
			zap.Error(err),
		)
	}

	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse fallback font: %w", err)
	}
	return newFace(f, size)
}

func parseFace(path string, size float64) (font.Face, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return newFace(f, size)
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	return face, nil
}
