package models

import (
	"time"
)

// PlayerView is the serializable projection of a Player.
type PlayerView struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// SeatView pairs a seated player with its turn window, if any.
type SeatView struct {
	Player *PlayerView `json:"player,omitempty"`
	Turn   *TurnState  `json:"turn,omitempty"`
}

// View is the read-only projection observers pull from the local cache after
// an update notice. It carries everything a client needs to render the game
// and both queues.
type View struct {
	Version     int64        `json:"version"`
	FEN         string       `json:"fen"`
	Turn        Color        `json:"turn"`
	LastMove    *MoveRecord  `json:"last_move,omitempty"`
	MoveHistory []string     `json:"move_history"`
	White       SeatView     `json:"white"`
	Black       SeatView     `json:"black"`
	WhiteQueue  []PlayerView `json:"white_queue"`
	BlackQueue  []PlayerView `json:"black_queue"`
}

// DeriveView projects a consolidated record into a View. The caller supplies
// the side to move, derived from the position encoding.
func DeriveView(s *ConsolidatedState, turn Color) *View {
	v := &View{
		Version:     s.Version,
		FEN:         s.Game.FEN,
		Turn:        turn,
		MoveHistory: append([]string(nil), s.Game.MoveHistory...),
		WhiteQueue:  playerViews(s.Queues.White),
		BlackQueue:  playerViews(s.Queues.Black),
		White:       seatView(s.Current.White, s.Turns.White),
		Black:       seatView(s.Current.Black, s.Turns.Black),
	}
	if s.Game.LastMove != nil {
		lm := *s.Game.LastMove
		v.LastMove = &lm
	}
	return v
}

// AnonymizedFor returns a copy of the view with every player id the viewer
// does not own replaced by its opaque token.
func (v *View) AnonymizedFor(viewerID string) *View {
	out := *v
	out.MoveHistory = append([]string(nil), v.MoveHistory...)
	out.White = anonymizeSeat(v.White, viewerID)
	out.Black = anonymizeSeat(v.Black, viewerID)
	out.WhiteQueue = anonymizeQueue(v.WhiteQueue, viewerID)
	out.BlackQueue = anonymizeQueue(v.BlackQueue, viewerID)
	if v.LastMove != nil {
		lm := *v.LastMove
		lm.PlayerID = Anonymize(lm.PlayerID, viewerID)
		out.LastMove = &lm
	}
	return &out
}

func seatView(p *Player, t *TurnState) SeatView {
	var sv SeatView
	if p != nil {
		sv.Player = &PlayerView{ID: p.ID, DisplayName: p.DisplayName, JoinedAt: p.JoinedAt}
	}
	if t != nil {
		ts := *t
		sv.Turn = &ts
	}
	return sv
}

func playerViews(players []Player) []PlayerView {
	out := make([]PlayerView, len(players))
	for i, p := range players {
		out[i] = PlayerView{ID: p.ID, DisplayName: p.DisplayName, JoinedAt: p.JoinedAt}
	}
	return out
}

func anonymizeSeat(sv SeatView, viewerID string) SeatView {
	out := sv
	if sv.Player != nil {
		p := *sv.Player
		p.ID = Anonymize(p.ID, viewerID)
		out.Player = &p
	}
	if sv.Turn != nil {
		t := *sv.Turn
		out.Turn = &t
	}
	return out
}

func anonymizeQueue(players []PlayerView, viewerID string) []PlayerView {
	out := make([]PlayerView, len(players))
	for i, p := range players {
		p.ID = Anonymize(p.ID, viewerID)
		out[i] = p
	}
	return out
}
