package auctions

import "errors"

var (
	// ErrInvalidState is returned when an operation is called in the wrong
	// lifecycle phase.
	ErrInvalidState = errors.New("invalid auction state")
	// ErrInvalidTransfer is returned when a companion transfer has the
	// wrong asset, amount, sender or receiver.
	ErrInvalidTransfer = errors.New("invalid transfer")
	// ErrBidTooLow is returned for bids not strictly above the highest bid.
	ErrBidTooLow = errors.New("bid too low")
	// ErrNothingToClaim is returned when the caller has no refund pending.
	ErrNothingToClaim = errors.New("nothing to claim")
	// ErrAuctionNotEnded is returned when claiming the asset too early.
	ErrAuctionNotEnded = errors.New("auction not ended")
	// ErrNotWinner is returned when someone else than the winner claims
	// the asset.
	ErrNotWinner = errors.New("not the winner")
	// ErrAlreadyClaimed is returned when the asset was claimed before.
	ErrAlreadyClaimed = errors.New("asset already claimed")
	// ErrAssetNotClaimed is returned when deleting an auction that still
	// holds its asset.
	ErrAssetNotClaimed = errors.New("asset not claimed")
	// ErrUnauthorized is returned when the caller is not allowed to call a
	// seller-only operation.
	ErrUnauthorized = errors.New("unauthorized")
)
