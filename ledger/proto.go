package ledger

import "github.com/dedis/auction_contracts/chain"

// PROTOSTART
// type :chain.Address:string
// type :chain.AssetID:uint64
// package ledger;
//
// option java_package = "ch.epfl.dedis.lib.proto";
// option java_outer_classname = "LedgerProto";

// AssetParams describe an asset at creation.
type AssetParams struct {
	Total    uint64
	Decimals uint32
	Name     string
	Unit     string
	URL      string
}

// AssetInfo is a created asset.
type AssetInfo struct {
	ID      chain.AssetID
	Creator chain.Address
	Params  AssetParams
}

// AppInfo is a created application.
type AppInfo struct {
	ID      uint64
	Kind    string
	Creator chain.Address
	Escrow  chain.Address
}

// Holding is the amount of one asset held by an account.
type Holding struct {
	Asset  chain.AssetID
	Amount uint64
}
