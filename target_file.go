package onlineplayers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// DefaultImageName is the board filename used when none is configured.
const DefaultImageName = "online_players.png"

// FileTarget writes each board as a PNG file, replacing the previous one.
type FileTarget struct {
	dir  string
	name string
	log  *zap.Logger

	mu        sync.Mutex
	lastBytes []byte // last PNG written, to skip identical rewrites
}

// FileOption configures a FileTarget.
type FileOption func(*FileTarget)

// WithFileLogger sets the logger.
func WithFileLogger(l *zap.Logger) FileOption {
	return func(t *FileTarget) {
		t.log = l
	}
}

// NewFileTarget creates a target that writes boards to dir/name.
func NewFileTarget(dir, name string, opts ...FileOption) *FileTarget {
	if name == "" {
		name = DefaultImageName
	}
	t := &FileTarget{
		dir:  dir,
		name: name,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements Target.
func (t *FileTarget) Name() string {
	return fmt.Sprintf("FileTarget(%s)", t.Path())
}

// Path returns the destination file path.
func (t *FileTarget) Path() string {
	return filepath.Join(t.dir, t.name)
}

// Update implements Target. A board identical to the last one written is not
// written again.
func (t *FileTarget) Update(ctx context.Context, frame *Frame) error {
	if frame == nil || frame.Board == nil {
		return fmt.Errorf("no board to save")
	}

	data, err := encodePNG(frame.Board)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if bytes.Equal(data, t.lastBytes) {
		if _, err := os.Stat(t.Path()); err == nil {
			t.log.Debug("board unchanged, skipping write", zap.String("path", t.Path()))
			return nil
		}
	}

	if err := writeFileAtomic(t.dir, t.name, data); err != nil {
		t.log.Error("could not save image; if saving to a network location, ensure it is accessible. will wait and try again",
			zap.String("severity", "critical"),
			zap.String("path", t.Path()),
			zap.Error(err),
		)
		return err
	}
	t.lastBytes = data
	return nil
}

// Close implements Target.
func (t *FileTarget) Close() error {
	return nil
}

// SaveImage writes img as a PNG to dir/name, creating dir if missing.
func SaveImage(img image.Image, dir, name string) error {
	data, err := encodePNG(img)
	if err != nil {
		return err
	}
	return writeFileAtomic(dir, name, data)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data next to the destination and renames it into
// place so readers never observe a partial image.
func writeFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
