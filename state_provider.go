package onlineplayers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ErrNoPlayerSample is returned when the server answers its status query but
// does not report a player sample. No overlay can be built from such a server.
var ErrNoPlayerSample = errors.New("server did not return any player information")

// PresenceSource provides the players currently connected to a server.
type PresenceSource interface {
	// OnlinePlayers returns the connected players sorted by name. The only
	// error it returns is fatal; unreachable servers report zero players.
	OnlinePlayers(ctx context.Context) ([]Player, error)
}

// StaticPresence wraps a fixed player list.
type StaticPresence struct {
	players []Player
}

// NewStaticPresence creates a PresenceSource from a fixed player list.
func NewStaticPresence(players ...Player) *StaticPresence {
	sorted := append([]Player(nil), players...)
	SortPlayers(sorted)
	return &StaticPresence{players: sorted}
}

// OnlinePlayers implements PresenceSource.
func (p *StaticPresence) OnlinePlayers(ctx context.Context) ([]Player, error) {
	return append([]Player(nil), p.players...), nil
}

// PresenceFunc adapts a function to PresenceSource.
type PresenceFunc func(ctx context.Context) ([]Player, error)

// OnlinePlayers implements PresenceSource.
func (f PresenceFunc) OnlinePlayers(ctx context.Context) ([]Player, error) {
	return f(ctx)
}

// ServerPresence queries a Minecraft server's status for its player sample.
type ServerPresence struct {
	host    string
	port    int
	querier StatusQuerier
	timeout time.Duration
	log     *zap.Logger
}

// PresenceOption configures a ServerPresence.
type PresenceOption func(*ServerPresence)

// WithStatusQuerier replaces the network status query.
func WithStatusQuerier(q StatusQuerier) PresenceOption {
	return func(p *ServerPresence) {
		p.querier = q
	}
}

// WithStatusTimeout bounds each status query.
func WithStatusTimeout(d time.Duration) PresenceOption {
	return func(p *ServerPresence) {
		p.timeout = d
	}
}

// WithPresenceLogger sets the logger.
func WithPresenceLogger(l *zap.Logger) PresenceOption {
	return func(p *ServerPresence) {
		p.log = l
	}
}

// NewServerPresence creates a PresenceSource for host:port.
func NewServerPresence(host string, port int, opts ...PresenceOption) *ServerPresence {
	p := &ServerPresence{
		host:    host,
		port:    port,
		querier: PingQuerier{},
		timeout: 5 * time.Second,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log.Info("init server presence",
		zap.String("server_ip", host),
		zap.Int("server_port", port),
		zap.Duration("timeout", p.timeout),
	)
	return p
}

// Addr returns the host:port being queried.
func (p *ServerPresence) Addr() string {
	return net.JoinHostPort(p.host, strconv.Itoa(p.port))
}

// OnlinePlayers implements PresenceSource.
func (p *ServerPresence) OnlinePlayers(ctx context.Context) ([]Player, error) {
	qctx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	raw, err := p.querier.QueryStatus(qctx, p.Addr())
	if err != nil {
		p.log.Error("unable to connect to server, will continue running in case it comes online",
			zap.String("server", p.Addr()),
			zap.Error(err),
		)
		return []Player{}, nil
	}

	players, err := parseStatus(raw)
	if errors.Is(err, ErrNoPlayerSample) {
		p.log.Error("server did not return any player information, unable to proceed",
			zap.String("server", p.Addr()),
		)
		return nil, err
	}
	if err != nil {
		p.log.Error("unreadable status response",
			zap.String("server", p.Addr()),
			zap.Error(err),
		)
		return []Player{}, nil
	}

	p.log.Debug("players found", zap.Int("count", len(players)))
	SortPlayers(players)
	return players, nil
}

type serverStatus struct {
	Players *statusPlayers `json:"players"`
}

type statusPlayers struct {
	Max    int             `json:"max"`
	Online int             `json:"online"`
	Sample *[]statusSample `json:"sample"`
}

type statusSample struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// parseStatus decodes a server list ping response. A missing (or null)
// players.sample yields ErrNoPlayerSample; an empty one yields no players.
func parseStatus(raw []byte) ([]Player, error) {
	var st serverStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if st.Players == nil || st.Players.Sample == nil {
		return nil, ErrNoPlayerSample
	}

	sample := *st.Players.Sample
	players := make([]Player, 0, len(sample))
	for _, s := range sample {
		players = append(players, Player{ID: s.ID, Name: s.Name})
	}
	return players, nil
}
