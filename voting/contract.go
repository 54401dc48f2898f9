package voting

import (
	"github.com/dedis/auction_contracts/chain"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ContractVotingID identifies the voting contract.
var ContractVotingID = "voting"

// Methods of the voting contract.
const (
	MethodSetTopic = "set_topic"
	MethodVote     = "vote"
	MethodGetVotes = "get_votes"
)

// ArgTopic is the argument of set_topic.
const ArgTopic = "topic"

func init() {
	log.ErrFatal(chain.RegisterContract(ContractVotingID, func() chain.Contract {
		return contractVoting{}
	}))
}

type contractVoting struct{}

func (contractVoting) Create(env chain.Env) error { return New(env).Create() }

func (contractVoting) OptIn(env chain.Env) error { return New(env).OptIn() }

func (contractVoting) Invoke(env chain.Env, method string, args chain.Arguments,
	companion *chain.Transfer) ([]byte, error) {
	v := New(env)
	switch method {
	case MethodSetTopic:
		topic := args.Search(ArgTopic)
		if topic == nil {
			return nil, xerrors.Errorf("%s: %w", ArgTopic, chain.ErrMissingArgument)
		}
		return nil, v.SetTopic(topic)
	case MethodVote:
		if companion == nil {
			return nil, xerrors.Errorf("vote payment: %w", chain.ErrMissingTransfer)
		}
		counted, err := v.Vote(*companion)
		if err != nil {
			return nil, err
		}
		if counted {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case MethodGetVotes:
		votes, err := v.Votes()
		if err != nil {
			return nil, err
		}
		return chain.Uint64Bytes(votes), nil
	default:
		return nil, xerrors.Errorf("voting has no method %q: %w", method, chain.ErrUnknownMethod)
	}
}

func (contractVoting) Delete(chain.Env) error { return nil }
