package onlineplayers

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// DefaultAvatarURL is the avatar service used when none is configured.
// The single %s is replaced with the escaped player id.
const DefaultAvatarURL = "https://mc-heads.net/avatar/%s.png"

var (
	// ErrAvatarNotFound is returned when the avatar service does not answer 200.
	ErrAvatarNotFound = errors.New("avatar not found")

	errResolverClosed = errors.New("avatar resolver closed")
)

// AvatarResolver downloads player avatars. Decoded avatars are optionally kept
// in memory for a bounded time; nothing is written to disk.
type AvatarResolver struct {
	urlTemplate string
	client      *http.Client
	timeout     time.Duration
	cacheTTL    time.Duration
	cacheSize   int
	cache       *expirable.LRU[string, image.Image]
	log         *zap.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// AvatarOption configures an AvatarResolver.
type AvatarOption func(*AvatarResolver)

// WithAvatarURL sets the avatar URL template. It must contain one %s.
func WithAvatarURL(tmpl string) AvatarOption {
	return func(r *AvatarResolver) {
		r.urlTemplate = tmpl
	}
}

// WithHTTPClient sets the client used for avatar downloads.
func WithHTTPClient(c *http.Client) AvatarOption {
	return func(r *AvatarResolver) {
		r.client = c
	}
}

// WithAvatarTimeout bounds each avatar download.
func WithAvatarTimeout(d time.Duration) AvatarOption {
	return func(r *AvatarResolver) {
		r.timeout = d
	}
}

// WithAvatarCache keeps up to size avatars for ttl. A ttl of zero disables caching
// so every cycle downloads every avatar again.
func WithAvatarCache(size int, ttl time.Duration) AvatarOption {
	return func(r *AvatarResolver) {
		r.cacheSize = size
		r.cacheTTL = ttl
	}
}

// WithAvatarLogger sets the logger.
func WithAvatarLogger(l *zap.Logger) AvatarOption {
	return func(r *AvatarResolver) {
		r.log = l
	}
}

// NewAvatarResolver creates a resolver. Call Close once when done.
func NewAvatarResolver(opts ...AvatarOption) *AvatarResolver {
	r := &AvatarResolver{
		urlTemplate: DefaultAvatarURL,
		client:      http.DefaultClient,
		timeout:     5 * time.Second,
		cacheSize:   256,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheTTL > 0 && r.cacheSize > 0 {
		r.cache = expirable.NewLRU[string, image.Image](r.cacheSize, nil, r.cacheTTL)
	}
	return r
}

// URL returns the download URL for a player id.
func (r *AvatarResolver) URL(playerID string) string {
	return fmt.Sprintf(r.urlTemplate, url.PathEscape(playerID))
}

// Fetch returns the avatar for playerID. Any response other than 200, and any
// body that does not decode as an image, is reported as ErrAvatarNotFound.
func (r *AvatarResolver) Fetch(ctx context.Context, playerID string) (image.Image, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, errResolverClosed
	}

	if r.cache != nil {
		if img, ok := r.cache.Get(playerID); ok {
			r.log.Debug("avatar cache hit", zap.String("id", playerID))
			return img, nil
		}
	}

	img, err := r.download(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Add(playerID, img)
	}
	return img, nil
}

func (r *AvatarResolver) download(ctx context.Context, playerID string) (image.Image, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	u := r.URL(playerID)
	r.log.Debug("request avatar", zap.String("id", playerID), zap.String("url", u))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("avatar request %s: %w", playerID, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("avatar %s: %w: %v", playerID, ErrAvatarNotFound, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("avatar %s: %w: status %d", playerID, ErrAvatarNotFound, resp.StatusCode)
	}

	img, format, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("avatar %s: %w: decode: %v", playerID, ErrAvatarNotFound, err)
	}
	if !strings.EqualFold(format, "png") {
		r.log.Debug("avatar is not png", zap.String("id", playerID), zap.String("format", format))
	}
	return img, nil
}

// Cached returns the number of avatars currently held in memory.
func (r *AvatarResolver) Cached() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}

// Close releases every held avatar. Later fetches fail. Close is idempotent.
func (r *AvatarResolver) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		if r.cache != nil {
			r.cache.Purge()
		}
		r.log.Debug("avatar resolver closed")
	})
	return nil
}
