package onlineplayers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// NewFromConfig wires a server presence source, avatar resolver, compositor
// and the targets cfg enables. The file target is always registered.
func NewFromConfig(cfg Config, log *zap.Logger) (*Overlay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	presence := NewServerPresence(cfg.ServerIP, cfg.ServerPort,
		WithStatusTimeout(cfg.RequestTimeout()),
		WithPresenceLogger(log.Named("presence")),
	)

	resolver := NewAvatarResolver(
		WithAvatarURL(cfg.AvatarURL),
		WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		WithAvatarTimeout(cfg.RequestTimeout()),
		WithAvatarCache(256, cfg.AvatarCacheTTL()),
		WithAvatarLogger(log.Named("avatar")),
	)

	face, err := LoadFontFace(cfg.FontPath, DefaultFontSize, log.Named("font"))
	if err != nil {
		return nil, err
	}
	compositor, err := NewCompositor(resolver,
		WithPadding(cfg.VerticalPadding),
		WithShadow(cfg.DrawShadow),
		WithFontFace(face),
		WithAvatarWorkers(cfg.AvatarWorkers),
		WithCompositorLogger(log.Named("board")),
	)
	if err != nil {
		return nil, err
	}

	o := New(presence, compositor,
		WithInterval(cfg.Interval()),
		WithImageName(cfg.ImageName),
		WithLogger(log),
		WithCleanup(resolver),
	)
	o.AddTarget(NewFileTarget(cfg.OutputDir, cfg.ImageName, WithFileLogger(log.Named("file"))))

	if cfg.WebListen != "" {
		o.AddTarget(NewWebTarget(cfg.WebListen,
			WithOriginPatterns("*"),
			WithWebLogger(log.Named("web")),
		))
	}
	if cfg.HistoryDB != "" {
		history, err := OpenHistory(cfg.HistoryDB, log.Named("history"))
		if err != nil {
			_ = o.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		o.AddTarget(history)
	}
	return o, nil
}
