// Package tictactoe hosts any number of tic-tac-toe games between two
// accounts. The host of a game pays a storage deposit that comes back when
// the game is deleted; players keep their game statistics in their local
// state.
package tictactoe

import (
	"errors"
	"strconv"

	"github.com/dedis/auction_contracts/chain"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// GameDeposit is what the host pays to store a game.
const GameDeposit uint64 = 25000

var (
	// ErrNoGame is returned for unknown game ids.
	ErrNoGame = errors.New("no such game")
	// ErrInvalidDeposit is returned when new_game comes with a wrong
	// deposit.
	ErrInvalidDeposit = errors.New("invalid game deposit")
	// ErrCannotJoin is returned when joining an own or full game.
	ErrCannotJoin = errors.New("cannot join game")
	// ErrGameOver is returned for moves on finished games.
	ErrGameOver = errors.New("game is over")
	// ErrInvalidMove is returned for moves outside the board or on a taken
	// cell.
	ErrInvalidMove = errors.New("invalid move")
	// ErrNotYourTurn is returned when a player moves out of turn, or is not
	// a player at all.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrCannotDelete is returned when a game in progress is deleted, or by
	// someone else than the host, and when the application is deleted
	// while it still stores games.
	ErrCannotDelete = errors.New("cannot delete game")
)

var (
	keyCounter = []byte("id_counter")
	keyStored  = []byte("games_stored")
	keyPlayed  = []byte("games_played")
	keyWon     = []byte("games_won")
)

func gameKey(id uint64) []byte {
	return []byte("game/" + strconv.FormatUint(id, 10))
}

// TicTacToe is the state machine of one tic-tac-toe application.
type TicTacToe struct {
	env chain.Env
}

// New returns the state machine bound to the call described by env.
func New(env chain.Env) *TicTacToe {
	return &TicTacToe{env: env}
}

// OptIn starts the statistics of the caller at zero.
func (g *TicTacToe) OptIn() error {
	local, err := g.env.Local(g.env.Sender())
	if err != nil {
		return err
	}
	if err := local.Set(keyPlayed, chain.Uint64Bytes(0)); err != nil {
		return err
	}
	return local.Set(keyWon, chain.Uint64Bytes(0))
}

// NewGame stores an empty game hosted by the caller and returns its id.
func (g *TicTacToe) NewGame(deposit chain.Transfer) (uint64, error) {
	sender := g.env.Sender()
	if deposit.Sender != sender || deposit.Receiver != g.env.Address() ||
		deposit.Asset != chain.NativeAsset || deposit.Amount != GameDeposit {
		return 0, xerrors.Errorf("need %d from the host to the escrow: %w", GameDeposit, ErrInvalidDeposit)
	}
	if _, err := g.env.Local(sender); err != nil {
		return 0, err
	}
	id, err := readUint64(g.env.Global(), keyCounter)
	if err != nil {
		return 0, err
	}
	id++
	if err := g.env.Global().Set(keyCounter, chain.Uint64Bytes(id)); err != nil {
		return 0, err
	}
	game := GameState{Board: make([]byte, 9), Host: sender}
	if err := g.storeGame(id, &game); err != nil {
		return 0, err
	}
	if err := g.addStored(1); err != nil {
		return 0, err
	}
	log.Lvl3(sender, "hosts game", id)
	return id, nil
}

// Join makes the caller the guest of a game.
func (g *TicTacToe) Join(id uint64) error {
	game, err := g.Game(id)
	if err != nil {
		return err
	}
	sender := g.env.Sender()
	if game.Host == sender {
		return xerrors.Errorf("own game: %w", ErrCannotJoin)
	}
	if !game.Guest.IsZero() {
		return xerrors.Errorf("game %d is full: %w", id, ErrCannotJoin)
	}
	if _, err := g.env.Local(sender); err != nil {
		return err
	}
	game.Guest = sender
	return g.storeGame(id, &game)
}

// Move marks cell (x, y) for the caller. The host plays the even turns.
func (g *TicTacToe) Move(id, x, y uint64) error {
	game, err := g.Game(id)
	if err != nil {
		return err
	}
	if game.IsOver {
		return ErrGameOver
	}
	if x > 2 || y > 2 {
		return xerrors.Errorf("(%d, %d) is off the board: %w", x, y, ErrInvalidMove)
	}
	cell := 3*y + x
	if game.Board[cell] != Empty {
		return xerrors.Errorf("(%d, %d) is taken: %w", x, y, ErrInvalidMove)
	}
	sender := g.env.Sender()
	isHost := sender == game.Host
	switch {
	case isHost && game.Turns%2 == 0:
		game.Board[cell] = HostMark
	case !isHost && sender == game.Guest && game.Turns%2 == 1:
		game.Board[cell] = GuestMark
	default:
		return ErrNotYourTurn
	}
	game.Turns++

	over, draw := isGameOver(game.Board)
	if over {
		game.IsOver = true
		if err := g.addStat(game.Host, keyPlayed); err != nil {
			return err
		}
		if err := g.addStat(game.Guest, keyPlayed); err != nil {
			return err
		}
		if !draw {
			if err := g.addStat(sender, keyWon); err != nil {
				return err
			}
		}
		log.Lvl3("game", id, "over, draw:", draw)
	}
	return g.storeGame(id, &game)
}

// DeleteGame drops a game nobody joined or that is over, and refunds the
// deposit to its host.
func (g *TicTacToe) DeleteGame(id uint64) error {
	game, err := g.Game(id)
	if err != nil {
		return err
	}
	if !game.Guest.IsZero() && !game.IsOver {
		return xerrors.Errorf("game %d in progress: %w", id, ErrCannotDelete)
	}
	if g.env.Sender() != game.Host {
		return xerrors.Errorf("only the host deletes a game: %w", ErrCannotDelete)
	}
	if err := g.env.Global().Delete(gameKey(id)); err != nil {
		return err
	}
	if err := g.addStored(-1); err != nil {
		return err
	}
	return g.env.Send(game.Host, chain.NativeAsset, GameDeposit)
}

// Stored returns how many games hold a deposit.
func (g *TicTacToe) Stored() (uint64, error) {
	return readUint64(g.env.Global(), keyStored)
}

// Close refuses to drop the application while games hold deposits: only
// their hosts get them back, with delete_game.
func (g *TicTacToe) Close() error {
	n, err := g.Stored()
	if err != nil {
		return err
	}
	if n > 0 {
		return xerrors.Errorf("%d games still stored: %w", n, ErrCannotDelete)
	}
	return nil
}

// Game returns a stored game.
func (g *TicTacToe) Game(id uint64) (GameState, error) {
	buf, err := g.env.Global().Get(gameKey(id))
	if err != nil {
		return GameState{}, err
	}
	if buf == nil {
		return GameState{}, xerrors.Errorf("game %d: %w", id, ErrNoGame)
	}
	game := GameState{}
	if err := protobuf.Decode(buf, &game); err != nil {
		return GameState{}, xerrors.Errorf("decoding game: %v", err)
	}
	if len(game.Board) != 9 {
		return GameState{}, xerrors.Errorf("game %d has a broken board", id)
	}
	return game, nil
}

// PlayerStats returns the statistics of addr.
func (g *TicTacToe) PlayerStats(addr chain.Address) (Stats, error) {
	local, err := g.env.Local(addr)
	if err != nil {
		return Stats{}, err
	}
	played, err := readUint64(local, keyPlayed)
	if err != nil {
		return Stats{}, err
	}
	won, err := readUint64(local, keyWon)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Played: played, Won: won}, nil
}

func (g *TicTacToe) storeGame(id uint64, game *GameState) error {
	buf, err := protobuf.Encode(game)
	if err != nil {
		return xerrors.Errorf("encoding game: %v", err)
	}
	return g.env.Global().Set(gameKey(id), buf)
}

func (g *TicTacToe) addStat(addr chain.Address, key []byte) error {
	local, err := g.env.Local(addr)
	if err != nil {
		return err
	}
	v, err := readUint64(local, key)
	if err != nil {
		return err
	}
	return local.Set(key, chain.Uint64Bytes(v+1))
}

func (g *TicTacToe) addStored(delta int) error {
	n, err := g.Stored()
	if err != nil {
		return err
	}
	if delta < 0 && n == 0 {
		return xerrors.New("no game stored")
	}
	return g.env.Global().Set(keyStored, chain.Uint64Bytes(uint64(int64(n)+int64(delta))))
}

func readUint64(st chain.Store, key []byte) (uint64, error) {
	buf, err := st.Get(key)
	if err != nil || buf == nil {
		return 0, err
	}
	return chain.BytesUint64(buf)
}

// isGameOver checks rows, columns and diagonals, then a full board.
func isGameOver(b []byte) (over, draw bool) {
	line := func(i, j, k int) bool {
		return b[i] != Empty && b[i] == b[j] && b[j] == b[k]
	}
	for i := 0; i < 3; i++ {
		if line(3*i, 3*i+1, 3*i+2) || line(i, i+3, i+6) {
			return true, false
		}
	}
	if line(0, 4, 8) || line(2, 4, 6) {
		return true, false
	}
	for _, c := range b {
		if c == Empty {
			return false, false
		}
	}
	return true, true
}
