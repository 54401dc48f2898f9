package voting

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

func fee(from chain.Address) *chain.Transfer {
	return &chain.Transfer{Sender: from, Receiver: "escrow", Asset: chain.NativeAsset, Amount: VoteFee}
}

func TestVoting(t *testing.T) {
	fn, found := chain.SearchContract(ContractVotingID)
	require.True(t, found)
	c := fn()
	env := chain.NewMemEnv("creator", "escrow")
	require.NoError(t, c.Create(env))

	topic, err := New(env).Topic()
	require.NoError(t, err)
	require.Equal(t, DefaultTopic, topic)

	_, err = c.Invoke(env, MethodSetTopic, nil, nil)
	require.True(t, xerrors.Is(err, chain.ErrMissingArgument))
	_, err = c.Invoke(env, MethodSetTopic, chain.Arguments{{Name: ArgTopic, Value: []byte("lunch")}}, nil)
	require.NoError(t, err)
	topic, err = New(env).Topic()
	require.NoError(t, err)
	require.Equal(t, []byte("lunch"), topic)

	env.Caller = "alice"
	require.True(t, xerrors.Is(c.OptIn(env), chain.ErrNotOptedIn))
	_, err = c.Invoke(env, MethodVote, nil, fee("alice"))
	require.True(t, xerrors.Is(err, chain.ErrNotOptedIn))
	env.OptInAccount("alice")
	require.NoError(t, c.OptIn(env))

	_, err = c.Invoke(env, MethodVote, nil, nil)
	require.True(t, xerrors.Is(err, chain.ErrMissingTransfer))
	wrong := fee("alice")
	wrong.Amount = VoteFee + 1
	_, err = c.Invoke(env, MethodVote, nil, wrong)
	require.True(t, xerrors.Is(err, ErrInvalidPayment))
	_, err = c.Invoke(env, MethodVote, nil, fee("bob"))
	require.True(t, xerrors.Is(err, ErrInvalidPayment))

	ret, err := c.Invoke(env, MethodVote, nil, fee("alice"))
	require.NoError(t, err)
	require.Equal(t, []byte{1}, ret)
	ret, err = c.Invoke(env, MethodVote, nil, fee("alice"))
	require.NoError(t, err)
	require.Equal(t, []byte{0}, ret)

	env.Caller = "bob"
	env.OptInAccount("bob")
	ret, err = c.Invoke(env, MethodVote, nil, fee("bob"))
	require.NoError(t, err)
	require.Equal(t, []byte{1}, ret)

	ret, err = c.Invoke(env, MethodGetVotes, nil, nil)
	require.NoError(t, err)
	votes, err := chain.BytesUint64(ret)
	require.NoError(t, err)
	require.Equal(t, uint64(2), votes)

	_, err = c.Invoke(env, "close", nil, nil)
	require.True(t, xerrors.Is(err, chain.ErrUnknownMethod))
}
