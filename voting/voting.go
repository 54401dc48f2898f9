// Package voting is a pay-to-vote counter: every opted-in account can vote
// once on the current topic by bundling a fixed payment with the call.
package voting

import (
	"errors"

	"github.com/dedis/auction_contracts/chain"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// VoteFee is the exact payment a vote must come with.
const VoteFee uint64 = 10000

// DefaultTopic is the topic of a new voting application.
var DefaultTopic = []byte("default_topic")

// ErrInvalidPayment is returned when a vote is not paid with exactly
// VoteFee by the voter to the escrow.
var ErrInvalidPayment = errors.New("incorrect payment")

var (
	keyTopic = []byte("topic")
	keyVotes = []byte("votes")
	keyVoted = []byte("voted")
)

// Voting is the state machine of one voting application.
type Voting struct {
	env chain.Env
}

// New returns the state machine bound to the call described by env.
func New(env chain.Env) *Voting {
	return &Voting{env: env}
}

// Create sets the default topic and no votes.
func (v *Voting) Create() error {
	if err := v.env.Global().Set(keyTopic, DefaultTopic); err != nil {
		return err
	}
	return v.env.Global().Set(keyVotes, chain.Uint64Bytes(0))
}

// OptIn only checks that the host registered the caller.
func (v *Voting) OptIn() error {
	_, err := v.env.Local(v.env.Sender())
	return err
}

// SetTopic replaces the topic.
func (v *Voting) SetTopic(topic []byte) error {
	return v.env.Global().Set(keyTopic, topic)
}

// Topic returns the current topic.
func (v *Voting) Topic() ([]byte, error) {
	return v.env.Global().Get(keyTopic)
}

// Votes returns how many votes were cast.
func (v *Voting) Votes() (uint64, error) {
	buf, err := v.env.Global().Get(keyVotes)
	if err != nil {
		return 0, err
	}
	if buf == nil {
		return 0, nil
	}
	return chain.BytesUint64(buf)
}

// Vote counts the caller's vote. It returns false, and keeps the payment,
// if the caller voted before.
func (v *Voting) Vote(payment chain.Transfer) (bool, error) {
	sender := v.env.Sender()
	switch {
	case payment.Amount != VoteFee || payment.Asset != chain.NativeAsset:
		return false, xerrors.Errorf("vote paid %d of asset %d: %w", payment.Amount, payment.Asset, ErrInvalidPayment)
	case payment.Sender != sender:
		return false, xerrors.Errorf("payment sender must match transaction sender: %w", ErrInvalidPayment)
	case payment.Receiver != v.env.Address():
		return false, xerrors.Errorf("payment not sent to the escrow: %w", ErrInvalidPayment)
	}
	local, err := v.env.Local(sender)
	if err != nil {
		return false, err
	}
	voted, err := local.Get(keyVoted)
	if err != nil {
		return false, err
	}
	if voted != nil {
		log.Lvl3(sender, "already voted")
		return false, nil
	}
	votes, err := v.Votes()
	if err != nil {
		return false, err
	}
	if err := v.env.Global().Set(keyVotes, chain.Uint64Bytes(votes+1)); err != nil {
		return false, err
	}
	if err := local.Set(keyVoted, chain.Uint64Bytes(1)); err != nil {
		return false, err
	}
	return true, nil
}
