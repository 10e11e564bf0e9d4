// Package onlineplayers renders the players connected to a Minecraft server as a
// transparent avatar-and-name board for stream overlays.
package onlineplayers

import (
	"image"
	"slices"
	"strings"
	"time"
)

// Player is one connected player as reported by the server's status sample.
type Player struct {
	ID   string
	Name string
}

// Frame is the result of one poll cycle handed to every target.
type Frame struct {
	Players    []Player
	Board      image.Image
	RenderedAt time.Time
}

// Online returns the number of players shown on the frame.
func (f *Frame) Online() int {
	if f == nil {
		return 0
	}
	return len(f.Players)
}

// SortPlayers orders players by name, case-sensitive, ascending.
// Equal names keep their relative order.
func SortPlayers(players []Player) {
	slices.SortStableFunc(players, func(a, b Player) int {
		return strings.Compare(a.Name, b.Name)
	})
}
