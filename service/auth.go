package service

import (
	"errors"

	"github.com/dedis/auction_contracts/chain"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// ErrBadSignature is returned for requests that don't verify.
var ErrBadSignature = errors.New("bad signature")

// signedRequest is implemented by all requests that act on behalf of an
// account.
type signedRequest interface {
	auth() *Auth
}

func (r *CreateAsset) auth() *Auth { return &r.Auth }
func (r *OptInAsset) auth() *Auth  { return &r.Auth }
func (r *Pay) auth() *Auth         { return &r.Auth }
func (r *CreateApp) auth() *Auth   { return &r.Auth }
func (r *OptInApp) auth() *Auth    { return &r.Auth }
func (r *Invoke) auth() *Auth      { return &r.Auth }
func (r *DeleteApp) auth() *Auth   { return &r.Auth }

// Address returns the account of a public key.
func Address(pub kyber.Point) chain.Address {
	return chain.Address(pub.String())
}

// Account signs requests for one key pair.
type Account struct {
	*key.Pair
}

// NewAccount creates a random account.
func NewAccount() Account {
	return Account{key.NewKeyPair(cothority.Suite)}
}

// Address returns the address of the account.
func (a Account) Address() chain.Address {
	return Address(a.Public)
}

func (a Account) sign(req signedRequest) error {
	auth := req.auth()
	auth.Public = a.Public
	auth.Signature = nil
	buf, err := protobuf.Encode(req)
	if err != nil {
		return xerrors.Errorf("encoding request: %v", err)
	}
	sig, err := schnorr.Sign(cothority.Suite, a.Private, buf)
	if err != nil {
		return xerrors.Errorf("signing request: %v", err)
	}
	auth.Signature = sig
	return nil
}

// verify returns the address of the signer of req.
func verify(req signedRequest) (chain.Address, error) {
	auth := req.auth()
	if auth.Public == nil {
		return "", xerrors.Errorf("no signer: %w", ErrBadSignature)
	}
	sig := auth.Signature
	auth.Signature = nil
	buf, err := protobuf.Encode(req)
	auth.Signature = sig
	if err != nil {
		return "", xerrors.Errorf("encoding request: %v", err)
	}
	if err := schnorr.Verify(cothority.Suite, auth.Public, buf, sig); err != nil {
		return "", xerrors.Errorf("%v: %w", err, ErrBadSignature)
	}
	return Address(auth.Public), nil
}
