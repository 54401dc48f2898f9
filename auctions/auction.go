package auctions

import (
	"math"

	"github.com/dedis/auction_contracts/chain"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

var (
	keyAuction = []byte("auction")
	keyBidder  = []byte("bidder")
)

// Auction runs the auction state machine against the storage of one
// application. Every operation checks all of its guards before it writes
// anything, and the host drops all writes of an operation that returns an
// error.
type Auction struct {
	env chain.Env
}

// New returns the state machine bound to the call described by env.
func New(env chain.Env) *Auction {
	return &Auction{env: env}
}

// Data returns the global auction state.
func (a *Auction) Data() (AuctionData, error) {
	return ReadData(a.env.Global())
}

// ReadData decodes the auction out of the global state of an auction
// application.
func ReadData(global chain.Store) (AuctionData, error) {
	buf, err := global.Get(keyAuction)
	if err != nil {
		return AuctionData{}, xerrors.Errorf("reading auction: %v", err)
	}
	if buf == nil {
		return AuctionData{}, xerrors.Errorf("no auction stored: %w", ErrInvalidState)
	}
	ad := AuctionData{}
	if err := protobuf.Decode(buf, &ad); err != nil {
		return AuctionData{}, xerrors.Errorf("decoding auction: %v", err)
	}
	return ad, nil
}

// State returns the lifecycle phase at the current ledger time.
func (a *Auction) State() (State, error) {
	ad, err := a.Data()
	if err != nil {
		return Uninitialized, err
	}
	return ad.State(a.env.Now()), nil
}

// Claimable returns what addr can withdraw with ClaimBids.
func (a *Auction) Claimable(addr chain.Address) (uint64, error) {
	_, bd, err := a.bidder(addr)
	if err != nil {
		return 0, err
	}
	return bd.ClaimableAmount, nil
}

// Create stores an empty auction with the caller as seller.
func (a *Auction) Create() error {
	return a.store(&AuctionData{Seller: a.env.Sender()})
}

// OptIn registers the local state of the caller.
func (a *Auction) OptIn() error {
	st, bd, err := a.bidder(a.env.Sender())
	if err != nil {
		return err
	}
	return a.storeBidder(st, &bd)
}

// OptIntoAsset lets the escrow receive the asset to be auctioned. It can
// only be done once, by the seller, before the auction starts.
func (a *Auction) OptIntoAsset(asset chain.AssetID) error {
	ad, err := a.Data()
	if err != nil {
		return err
	}
	if err := a.onlySeller(ad); err != nil {
		return err
	}
	if ad.AssetDeposited || ad.AssetID != 0 {
		return xerrors.Errorf("asset %d already chosen: %w", ad.AssetID, ErrInvalidState)
	}
	if asset == chain.NativeAsset {
		return xerrors.Errorf("cannot auction the native currency: %w", ErrInvalidTransfer)
	}
	if err := a.env.OptInAsset(asset); err != nil {
		return xerrors.Errorf("opting into asset %d: %w", asset, err)
	}
	ad.AssetID = asset
	return a.store(&ad)
}

// StartAuction opens the bidding window for length seconds. deposit must
// move the single unit of the asset from the seller to the escrow.
// It returns the end time of the auction.
func (a *Auction) StartAuction(startingPrice, length uint64, deposit chain.Transfer) (uint64, error) {
	ad, err := a.Data()
	if err != nil {
		return 0, err
	}
	if err := a.onlySeller(ad); err != nil {
		return 0, err
	}
	if ad.AssetDeposited {
		return 0, xerrors.Errorf("auction already started: %w", ErrInvalidState)
	}
	if ad.AssetID == 0 {
		return 0, xerrors.Errorf("escrow did not opt into an asset: %w", ErrInvalidState)
	}
	if length == 0 {
		return 0, xerrors.Errorf("auction length must be positive: %w", ErrInvalidState)
	}
	now := a.env.Now()
	if length > math.MaxUint64-now {
		return 0, xerrors.Errorf("auction length overflows the ledger time: %w", ErrInvalidState)
	}
	switch {
	case deposit.Asset != ad.AssetID:
		return 0, xerrors.Errorf("deposit of asset %d instead of %d: %w",
			deposit.Asset, ad.AssetID, ErrInvalidTransfer)
	case deposit.Amount != 1:
		return 0, xerrors.Errorf("deposit of %d units instead of 1: %w",
			deposit.Amount, ErrInvalidTransfer)
	case deposit.Sender != ad.Seller:
		return 0, xerrors.Errorf("deposit not sent by the seller: %w", ErrInvalidTransfer)
	case deposit.Receiver != a.env.Address():
		return 0, xerrors.Errorf("deposit not sent to the escrow: %w", ErrInvalidTransfer)
	}

	ad.StartTime = now
	ad.EndTime = now + length
	ad.HighestBid = startingPrice
	ad.AssetDeposited = true
	if err := a.store(&ad); err != nil {
		return 0, err
	}
	log.Lvlf2("auction of asset %d started at %d, ends at %d", ad.AssetID, ad.StartTime, ad.EndTime)
	return ad.EndTime, nil
}

// Bid makes the caller the highest bidder. payment is kept by the escrow;
// the bid it replaces becomes claimable by the previous highest bidder.
// It returns the new highest bid.
func (a *Auction) Bid(payment chain.Transfer) (uint64, error) {
	ad, err := a.Data()
	if err != nil {
		return 0, err
	}
	if st := ad.State(a.env.Now()); st != Active {
		return 0, xerrors.Errorf("cannot bid on %s auction: %w", st, ErrInvalidState)
	}
	sender := a.env.Sender()
	switch {
	case payment.Asset != chain.NativeAsset:
		return 0, xerrors.Errorf("bid paid with asset %d: %w", payment.Asset, ErrInvalidTransfer)
	case payment.Sender != sender:
		return 0, xerrors.Errorf("bid paid by someone else: %w", ErrInvalidTransfer)
	case payment.Receiver != a.env.Address():
		return 0, xerrors.Errorf("bid not paid to the escrow: %w", ErrInvalidTransfer)
	}
	if payment.Amount <= ad.HighestBid {
		return 0, xerrors.Errorf("%d is not above %d: %w", payment.Amount, ad.HighestBid, ErrBidTooLow)
	}
	// Only accounts that opted in can bid.
	if _, _, err := a.bidder(sender); err != nil {
		return 0, err
	}

	if !ad.HighestBidder.IsZero() {
		st, prev, err := a.bidder(ad.HighestBidder)
		if err != nil {
			return 0, err
		}
		if prev.ClaimableAmount > math.MaxUint64-ad.HighestBid ||
			ad.Refunds > math.MaxUint64-ad.HighestBid {
			return 0, xerrors.New("claimable amount overflow")
		}
		prev.ClaimableAmount += ad.HighestBid
		ad.Refunds += ad.HighestBid
		if err := a.storeBidder(st, &prev); err != nil {
			return 0, err
		}
	}
	ad.HighestBid = payment.Amount
	ad.HighestBidder = sender
	if err := a.store(&ad); err != nil {
		return 0, err
	}
	log.Lvl3("new highest bid", ad.HighestBid, "from", sender)
	return ad.HighestBid, nil
}

// ClaimBids pays the caller everything it was outbid with and returns the
// amount.
func (a *Auction) ClaimBids() (uint64, error) {
	ad, err := a.Data()
	if err != nil {
		return 0, err
	}
	sender := a.env.Sender()
	st, bd, err := a.bidder(sender)
	if err != nil {
		return 0, err
	}
	if bd.ClaimableAmount == 0 {
		return 0, ErrNothingToClaim
	}
	amount := bd.ClaimableAmount
	if ad.Refunds < amount {
		return 0, xerrors.Errorf("refunds of %d cannot cover %d: %w", ad.Refunds, amount, ErrInvalidState)
	}
	ad.Refunds -= amount
	bd.ClaimableAmount = 0
	if err := a.storeBidder(st, &bd); err != nil {
		return 0, err
	}
	if err := a.store(&ad); err != nil {
		return 0, err
	}
	if err := a.env.Send(sender, chain.NativeAsset, amount); err != nil {
		return 0, xerrors.Errorf("refunding %s: %w", sender, err)
	}
	log.Lvl3(sender, "claimed", amount)
	return amount, nil
}

// ClaimAsset hands the asset to the winner once the auction ended.
func (a *Auction) ClaimAsset(asset chain.AssetID) error {
	ad, err := a.Data()
	if err != nil {
		return err
	}
	if !ad.AssetDeposited {
		return xerrors.Errorf("auction never started: %w", ErrInvalidState)
	}
	if now := a.env.Now(); now < ad.EndTime {
		return xerrors.Errorf("auction ends at %d, now is %d: %w", ad.EndTime, now, ErrAuctionNotEnded)
	}
	if ad.AssetClaimed {
		return ErrAlreadyClaimed
	}
	if asset != ad.AssetID {
		return xerrors.Errorf("auction holds asset %d, not %d: %w", ad.AssetID, asset, ErrInvalidTransfer)
	}
	winner := ad.Winner()
	if a.env.Sender() != winner {
		return ErrNotWinner
	}
	ad.AssetClaimed = true
	if err := a.store(&ad); err != nil {
		return err
	}
	if err := a.env.Send(winner, ad.AssetID, 1); err != nil {
		return xerrors.Errorf("sending asset to %s: %w", winner, err)
	}
	log.Lvl2("asset", ad.AssetID, "claimed by", winner)
	return nil
}

// DeleteApplication pays the winning bid to the seller and wipes the
// auction. It returns the amount paid. The auction cannot be deleted while
// outbid bidders still have refunds to claim.
func (a *Auction) DeleteApplication() (uint64, error) {
	ad, err := a.Data()
	if err != nil {
		return 0, err
	}
	if err := a.onlySeller(ad); err != nil {
		return 0, err
	}
	if ad.AssetDeposited && !ad.AssetClaimed {
		return 0, ErrAssetNotClaimed
	}
	if ad.Refunds > 0 {
		return 0, xerrors.Errorf("%d of refunds not claimed yet: %w", ad.Refunds, ErrInvalidState)
	}
	var payout uint64
	if ad.AssetClaimed && !ad.HighestBidder.IsZero() {
		payout = ad.HighestBid
		if err := a.env.Send(ad.Seller, chain.NativeAsset, payout); err != nil {
			return 0, xerrors.Errorf("paying seller: %w", err)
		}
	}
	if err := a.env.Global().Delete(keyAuction); err != nil {
		return 0, err
	}
	log.Lvl2("auction deleted, seller got", payout)
	return payout, nil
}

func (a *Auction) onlySeller(ad AuctionData) error {
	if a.env.Sender() != ad.Seller {
		return xerrors.Errorf("%s is not the seller: %w", a.env.Sender(), ErrUnauthorized)
	}
	return nil
}

func (a *Auction) store(ad *AuctionData) error {
	buf, err := protobuf.Encode(ad)
	if err != nil {
		return xerrors.Errorf("encoding auction: %v", err)
	}
	return a.env.Global().Set(keyAuction, buf)
}

func (a *Auction) bidder(addr chain.Address) (chain.Store, BidderData, error) {
	st, err := a.env.Local(addr)
	if err != nil {
		return nil, BidderData{}, xerrors.Errorf("local state of %s: %w", addr, err)
	}
	bd := BidderData{}
	buf, err := st.Get(keyBidder)
	if err != nil {
		return nil, BidderData{}, err
	}
	if buf != nil {
		if err := protobuf.Decode(buf, &bd); err != nil {
			return nil, BidderData{}, xerrors.Errorf("decoding bidder: %v", err)
		}
	}
	return st, bd, nil
}

func (a *Auction) storeBidder(st chain.Store, bd *BidderData) error {
	buf, err := protobuf.Encode(bd)
	if err != nil {
		return xerrors.Errorf("encoding bidder: %v", err)
	}
	return st.Set(keyBidder, buf)
}
