package onlineplayers

import (
	"encoding/json"
	"time"
)

// PresenceJSON is the JSON representation of a Frame for web overlays.
type PresenceJSON struct {
	Online     int          `json:"online"`
	Players    []PlayerJSON `json:"players"`
	RenderedAt time.Time    `json:"rendered_at"`
	Board      string       `json:"board"`
}

// PlayerJSON is the JSON representation of a Player.
type PlayerJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FrameToJSON converts a Frame to PresenceJSON. Players are never null.
func FrameToJSON(frame *Frame) PresenceJSON {
	if frame == nil {
		return PresenceJSON{Players: []PlayerJSON{}, Board: boardPath}
	}

	players := make([]PlayerJSON, len(frame.Players))
	for i, p := range frame.Players {
		players[i] = PlayerJSON{ID: p.ID, Name: p.Name}
	}
	return PresenceJSON{
		Online:     len(players),
		Players:    players,
		RenderedAt: frame.RenderedAt.UTC(),
		Board:      boardPath,
	}
}

// FrameToJSONBytes converts a Frame to JSON bytes.
func FrameToJSONBytes(frame *Frame) ([]byte, error) {
	return json.Marshal(FrameToJSON(frame))
}
