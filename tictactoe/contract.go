package tictactoe

import (
	"github.com/dedis/auction_contracts/chain"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ContractTicTacToeID identifies the tic-tac-toe contract.
var ContractTicTacToeID = "tictactoe"

// Methods of the tic-tac-toe contract.
const (
	MethodNewGame    = "new_game"
	MethodJoin       = "join"
	MethodMove       = "move"
	MethodDeleteGame = "delete_game"
)

// Arguments of the tic-tac-toe methods.
const (
	ArgGame = "game"
	ArgX    = "x"
	ArgY    = "y"
)

func init() {
	log.ErrFatal(chain.RegisterContract(ContractTicTacToeID, func() chain.Contract {
		return contractTicTacToe{}
	}))
}

type contractTicTacToe struct{}

func (contractTicTacToe) Create(chain.Env) error { return nil }

func (contractTicTacToe) OptIn(env chain.Env) error { return New(env).OptIn() }

func (contractTicTacToe) Invoke(env chain.Env, method string, args chain.Arguments,
	companion *chain.Transfer) ([]byte, error) {
	g := New(env)
	if method == MethodNewGame {
		if companion == nil {
			return nil, xerrors.Errorf("game deposit: %w", chain.ErrMissingTransfer)
		}
		id, err := g.NewGame(*companion)
		if err != nil {
			return nil, err
		}
		return chain.Uint64Bytes(id), nil
	}

	id, err := args.Uint64(ArgGame)
	if err != nil {
		return nil, err
	}
	switch method {
	case MethodJoin:
		return nil, g.Join(id)
	case MethodMove:
		x, err := args.Uint64(ArgX)
		if err != nil {
			return nil, err
		}
		y, err := args.Uint64(ArgY)
		if err != nil {
			return nil, err
		}
		return nil, g.Move(id, x, y)
	case MethodDeleteGame:
		return nil, g.DeleteGame(id)
	default:
		return nil, xerrors.Errorf("tictactoe has no method %q: %w", method, chain.ErrUnknownMethod)
	}
}

func (contractTicTacToe) Delete(env chain.Env) error { return New(env).Close() }
