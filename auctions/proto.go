package auctions

import "github.com/dedis/auction_contracts/chain"

// PROTOSTART
// package auction;
//
// option java_package = "ch.epfl.dedis.template.proto";
// option java_outer_classname = "AuctionProto";

// AuctionData is the global state of one auction instance.
type AuctionData struct {
	AssetID        chain.AssetID
	Seller         chain.Address
	StartTime      uint64
	EndTime        uint64 // fixed when the auction starts
	HighestBid     uint64
	HighestBidder  chain.Address // zero until the first bid
	AssetDeposited bool
	AssetClaimed   bool
	// Refunds is the sum of the claimable amounts of all bidders.
	Refunds uint64
}

// BidderData is the local state every participating account keeps.
type BidderData struct {
	// ClaimableAmount is what the account can withdraw because it got
	// outbid.
	ClaimableAmount uint64
}

// Snapshot is how the ByzCoin contract stores its whole key/value space
// in one instance.
type Snapshot struct {
	Entries []chain.KeyValue
}

// State is the lifecycle phase of an auction.
type State int

const (
	// Uninitialized auctions are created but have no asset deposited yet.
	Uninitialized State = iota
	// Active auctions accept bids.
	Active
	// Closed auctions are past their end time, the asset is still held.
	Closed
	// Settled auctions had their asset claimed.
	Settled
)

var states = [...]string{
	"UNINITIALIZED",
	"ACTIVE",
	"CLOSED",
	"SETTLED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(states) {
		return "UNKNOWN"
	}
	return states[s]
}

// State returns the phase of the auction at the given ledger time.
func (ad AuctionData) State(now uint64) State {
	switch {
	case !ad.AssetDeposited:
		return Uninitialized
	case ad.AssetClaimed:
		return Settled
	case now < ad.EndTime:
		return Active
	default:
		return Closed
	}
}

// Winner is the account entitled to the asset once the auction closed.
// The seller gets the asset back if nobody bid.
func (ad AuctionData) Winner() chain.Address {
	if ad.HighestBidder.IsZero() {
		return ad.Seller
	}
	return ad.HighestBidder
}
