package services

import (
	"sync"

	"github.com/tcgscan/collection-engine/internal/models"
)

// GameState is the shared record of which game is currently selected. The
// collection service keys by numeric id and the catalog service by name, so
// both travel together.
type GameState struct {
	mu   sync.RWMutex
	game models.Game
}

func NewGameState(game models.Game) *GameState {
	return &GameState{game: game}
}

// Current returns the selected game.
func (s *GameState) Current() models.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.game
}

// Switch changes the selected game and reports whether it actually changed.
func (s *GameState) Switch(game models.Game) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game.ID == game.ID {
		return false
	}
	s.game = game
	return true
}
