package tictactoe

import "github.com/dedis/auction_contracts/chain"

// Marks on the board.
const (
	Empty     byte = 0
	HostMark  byte = 1
	GuestMark byte = 2
)

// GameState is one game, stored under its id in the global state.
type GameState struct {
	// Board holds 9 cells, row after row.
	Board  []byte
	Host   chain.Address
	Guest  chain.Address
	IsOver bool
	Turns  uint64
}

// Stats are kept in the local state of every player.
type Stats struct {
	Played uint64
	Won    uint64
}
