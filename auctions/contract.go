package auctions

import (
	"github.com/dedis/auction_contracts/chain"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ContractAuctionID identifies an auction contract
var ContractAuctionID = "auction"

// Methods of the auction contract.
const (
	MethodOptIntoAsset = "opt_into_asset"
	MethodStartAuction = "start_auction"
	MethodBid          = "bid"
	MethodClaimBids    = "claim_bids"
	MethodClaimAsset   = "claim_asset"
)

// Argument names of the auction methods.
const (
	ArgAsset         = "asset"
	ArgStartingPrice = "starting_price"
	ArgLength        = "length"
)

func init() {
	log.ErrFatal(chain.RegisterContract(ContractAuctionID, func() chain.Contract {
		return contractAuction{}
	}))
}

// contractAuction exposes the auction to a chain host.
// The following methods are available:
//  - opt_into_asset(asset): seller prepares the escrow
//  - start_auction(starting_price, length) + asset deposit
//  - bid() + payment
//  - claim_bids()
//  - claim_asset(asset)
// Deleting the application pays the seller.
type contractAuction struct{}

func (contractAuction) Create(env chain.Env) error {
	return New(env).Create()
}

func (contractAuction) OptIn(env chain.Env) error {
	return New(env).OptIn()
}

func (contractAuction) Invoke(env chain.Env, method string, args chain.Arguments,
	companion *chain.Transfer) ([]byte, error) {
	a := New(env)
	switch method {
	case MethodOptIntoAsset:
		asset, err := args.Uint64(ArgAsset)
		if err != nil {
			return nil, err
		}
		return nil, a.OptIntoAsset(chain.AssetID(asset))

	case MethodStartAuction:
		price, err := args.Uint64(ArgStartingPrice)
		if err != nil {
			return nil, err
		}
		length, err := args.Uint64(ArgLength)
		if err != nil {
			return nil, err
		}
		if companion == nil {
			return nil, xerrors.Errorf("asset deposit: %w", chain.ErrMissingTransfer)
		}
		end, err := a.StartAuction(price, length, *companion)
		if err != nil {
			return nil, err
		}
		return chain.Uint64Bytes(end), nil

	case MethodBid:
		if companion == nil {
			return nil, xerrors.Errorf("bid payment: %w", chain.ErrMissingTransfer)
		}
		highest, err := a.Bid(*companion)
		if err != nil {
			return nil, err
		}
		return chain.Uint64Bytes(highest), nil

	case MethodClaimBids:
		amount, err := a.ClaimBids()
		if err != nil {
			return nil, err
		}
		return chain.Uint64Bytes(amount), nil

	case MethodClaimAsset:
		asset, err := args.Uint64(ArgAsset)
		if err != nil {
			return nil, err
		}
		return nil, a.ClaimAsset(chain.AssetID(asset))

	default:
		return nil, xerrors.Errorf("auction has no method %q: %w", method, chain.ErrUnknownMethod)
	}
}

func (contractAuction) Delete(env chain.Env) error {
	_, err := New(env).DeleteApplication()
	return err
}
