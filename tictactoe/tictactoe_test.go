package tictactoe

import (
	"testing"

	"github.com/dedis/auction_contracts/chain"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

type testGame struct {
	t   *testing.T
	c   chain.Contract
	env *chain.MemEnv
}

func newTestGame(t *testing.T) *testGame {
	fn, found := chain.SearchContract(ContractTicTacToeID)
	require.True(t, found)
	tg := &testGame{t: t, c: fn(), env: chain.NewMemEnv("creator", "escrow")}
	require.NoError(t, tg.c.Create(tg.env))
	for _, p := range []chain.Address{"host", "guest", "other"} {
		tg.env.OptInAccount(p)
		tg.env.Caller = p
		require.NoError(t, tg.c.OptIn(tg.env))
	}
	return tg
}

func (tg *testGame) invoke(sender chain.Address, method string, args chain.Arguments,
	companion *chain.Transfer) ([]byte, error) {
	tg.env.Caller = sender
	return tg.c.Invoke(tg.env, method, args, companion)
}

func (tg *testGame) newGame(host chain.Address) uint64 {
	ret, err := tg.invoke(host, MethodNewGame, nil, deposit(host, GameDeposit))
	require.NoError(tg.t, err)
	id, err := chain.BytesUint64(ret)
	require.NoError(tg.t, err)
	return id
}

func (tg *testGame) move(player chain.Address, id, x, y uint64) error {
	_, err := tg.invoke(player, MethodMove, chain.Arguments{
		chain.Uint64Arg(ArgGame, id), chain.Uint64Arg(ArgX, x), chain.Uint64Arg(ArgY, y)}, nil)
	return err
}

func (tg *testGame) stats(addr chain.Address) Stats {
	s, err := New(tg.env).PlayerStats(addr)
	require.NoError(tg.t, err)
	return s
}

func deposit(from chain.Address, amount uint64) *chain.Transfer {
	return &chain.Transfer{Sender: from, Receiver: "escrow", Asset: chain.NativeAsset, Amount: amount}
}

func gameArg(id uint64) chain.Arguments {
	return chain.Arguments{chain.Uint64Arg(ArgGame, id)}
}

func TestTicTacToe_Win(t *testing.T) {
	tg := newTestGame(t)

	_, err := tg.invoke("host", MethodNewGame, nil, deposit("host", GameDeposit-1))
	require.True(t, xerrors.Is(err, ErrInvalidDeposit))
	_, err = tg.invoke("host", MethodNewGame, nil, nil)
	require.True(t, xerrors.Is(err, chain.ErrMissingTransfer))

	id := tg.newGame("host")
	require.Equal(t, uint64(1), id)
	require.Equal(t, uint64(2), tg.newGame("other"))

	_, err = tg.invoke("host", MethodJoin, gameArg(id), nil)
	require.True(t, xerrors.Is(err, ErrCannotJoin))
	_, err = tg.invoke("guest", MethodJoin, gameArg(id), nil)
	require.NoError(t, err)
	_, err = tg.invoke("other", MethodJoin, gameArg(id), nil)
	require.True(t, xerrors.Is(err, ErrCannotJoin))
	_, err = tg.invoke("guest", MethodJoin, gameArg(42), nil)
	require.True(t, xerrors.Is(err, ErrNoGame))

	require.True(t, xerrors.Is(tg.move("guest", id, 0, 0), ErrNotYourTurn))
	require.NoError(t, tg.move("host", id, 0, 0))
	require.True(t, xerrors.Is(tg.move("host", id, 1, 1), ErrNotYourTurn))
	require.True(t, xerrors.Is(tg.move("other", id, 1, 1), ErrNotYourTurn))
	require.True(t, xerrors.Is(tg.move("guest", id, 0, 0), ErrInvalidMove))
	require.True(t, xerrors.Is(tg.move("guest", id, 3, 0), ErrInvalidMove))
	require.NoError(t, tg.move("guest", id, 0, 1))
	require.NoError(t, tg.move("host", id, 1, 0))
	require.NoError(t, tg.move("guest", id, 1, 1))

	_, err = tg.invoke("host", MethodDeleteGame, gameArg(id), nil)
	require.True(t, xerrors.Is(err, ErrCannotDelete))

	require.NoError(t, tg.move("host", id, 2, 0))
	game, err := New(tg.env).Game(id)
	require.NoError(t, err)
	require.True(t, game.IsOver)
	require.Equal(t, uint64(5), game.Turns)
	require.Equal(t, []byte{1, 1, 1, 2, 2, 0, 0, 0, 0}, game.Board)
	require.True(t, xerrors.Is(tg.move("guest", id, 2, 2), ErrGameOver))

	require.Equal(t, Stats{Played: 1, Won: 1}, tg.stats("host"))
	require.Equal(t, Stats{Played: 1, Won: 0}, tg.stats("guest"))
	require.Equal(t, Stats{}, tg.stats("other"))

	_, err = tg.invoke("guest", MethodDeleteGame, gameArg(id), nil)
	require.True(t, xerrors.Is(err, ErrCannotDelete))
	_, err = tg.invoke("host", MethodDeleteGame, gameArg(id), nil)
	require.NoError(t, err)
	require.Equal(t, GameDeposit, tg.env.Paid["host"][chain.NativeAsset])
	_, err = New(tg.env).Game(id)
	require.True(t, xerrors.Is(err, ErrNoGame))
}

func TestTicTacToe_Draw(t *testing.T) {
	tg := newTestGame(t)
	id := tg.newGame("host")
	_, err := tg.invoke("guest", MethodJoin, gameArg(id), nil)
	require.NoError(t, err)

	// x o x
	// x o o
	// o x x
	moves := [][2]uint64{{0, 0}, {1, 0}, {2, 0}, {1, 1}, {0, 1}, {2, 1}, {1, 2}, {0, 2}, {2, 2}}
	for i, m := range moves {
		player := chain.Address("host")
		if i%2 == 1 {
			player = "guest"
		}
		require.NoError(t, tg.move(player, id, m[0], m[1]))
	}
	game, err := New(tg.env).Game(id)
	require.NoError(t, err)
	require.True(t, game.IsOver)
	require.Equal(t, Stats{Played: 1}, tg.stats("host"))
	require.Equal(t, Stats{Played: 1}, tg.stats("guest"))
}

func TestTicTacToe_DeleteUnjoined(t *testing.T) {
	tg := newTestGame(t)
	id := tg.newGame("host")
	_, err := tg.invoke("host", MethodDeleteGame, gameArg(id), nil)
	require.NoError(t, err)
	require.Equal(t, GameDeposit, tg.env.Paid["host"][chain.NativeAsset])

	_, err = tg.invoke("host", MethodJoin, nil, nil)
	require.True(t, xerrors.Is(err, chain.ErrMissingArgument))
	_, err = tg.invoke("host", "resign", gameArg(id), nil)
	require.True(t, xerrors.Is(err, chain.ErrUnknownMethod))
}

func TestTicTacToe_DeleteWithGames(t *testing.T) {
	tg := newTestGame(t)
	id := tg.newGame("host")
	tg.newGame("guest")

	tg.env.Caller = "creator"
	require.True(t, xerrors.Is(tg.c.Delete(tg.env), ErrCannotDelete))

	_, err := tg.invoke("host", MethodDeleteGame, gameArg(id), nil)
	require.NoError(t, err)
	_, err = tg.invoke("guest", MethodDeleteGame, gameArg(id+1), nil)
	require.NoError(t, err)
	stored, err := New(tg.env).Stored()
	require.NoError(t, err)
	require.Equal(t, uint64(0), stored)

	tg.env.Caller = "creator"
	require.NoError(t, tg.c.Delete(tg.env))
	require.Nil(t, tg.env.Paid["creator"])
	require.Equal(t, GameDeposit, tg.env.Paid["host"][chain.NativeAsset])
	require.Equal(t, GameDeposit, tg.env.Paid["guest"][chain.NativeAsset])
}

func TestIsGameOver(t *testing.T) {
	over, draw := isGameOver([]byte{2, 1, 0, 2, 1, 0, 2, 0, 0})
	require.True(t, over)
	require.False(t, draw)
	over, _ = isGameOver([]byte{0, 0, 1, 0, 1, 0, 1, 0, 0})
	require.True(t, over)
	over, _ = isGameOver([]byte{1, 2, 0, 0, 0, 0, 0, 0, 0})
	require.False(t, over)
}
