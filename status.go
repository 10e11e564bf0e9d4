package onlineplayers

import (
	"context"
	"fmt"

	"github.com/Tnze/go-mc/bot"
)

// StatusQuerier performs the server list ping and returns the raw status JSON.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, addr string) ([]byte, error)
}

// StatusQuerierFunc adapts a function to StatusQuerier.
type StatusQuerierFunc func(ctx context.Context, addr string) ([]byte, error)

// QueryStatus implements StatusQuerier.
func (f StatusQuerierFunc) QueryStatus(ctx context.Context, addr string) ([]byte, error) {
	return f(ctx, addr)
}

// PingQuerier queries servers over the Minecraft server list ping protocol.
type PingQuerier struct{}

// QueryStatus implements StatusQuerier.
func (PingQuerier) QueryStatus(ctx context.Context, addr string) ([]byte, error) {
	resp, _, err := bot.PingAndListContext(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("ping %s: %w", addr, err)
	}
	return resp, nil
}
