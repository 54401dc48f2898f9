package service

import (
	"github.com/dedis/auction_contracts/chain"
	"github.com/dedis/auction_contracts/ledger"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/network"
)

// PROTOSTART
// type :chain.Address:string
// type :chain.AssetID:uint64
// package service;
// import "onet.proto";
// import "ledger.proto";
//
// option java_package = "ch.epfl.dedis.lib.proto";
// option java_outer_classname = "LedgerServiceProto";

// ServiceName can be used from other packages to refer to this service.
const ServiceName = "AuctionLedger"

// We need to register all messages so the network knows how to handle them.
func init() {
	network.RegisterMessages(
		Fund{}, FundReply{},
		SetTimestampOffset{}, SetTimestampOffsetReply{},
		GetApp{}, GetAppReply{},
		GetGlobalState{}, GetLocalState{}, GetStateReply{},
		GetBalance{}, GetBalanceReply{},
		CreateAsset{}, CreateAssetReply{},
		OptInAsset{}, OptInAssetReply{},
		Pay{}, PayReply{},
		CreateApp{}, CreateAppReply{},
		OptInApp{}, OptInAppReply{},
		Invoke{}, InvokeReply{},
		DeleteApp{}, DeleteAppReply{},
	)
}

// Auth holds the signature of a request. The signature covers the
// protobuf encoding of the request with an empty Signature.
type Auth struct {
	Public    kyber.Point
	Signature []byte
}

// Fund credits an account from the faucet of a development ledger.
type Fund struct {
	Roster  *onet.Roster
	Address chain.Address
	Amount  uint64
}

// FundReply is returned on success.
type FundReply struct{}

// SetTimestampOffset shifts the ledger clock of a development ledger.
type SetTimestampOffset struct {
	Roster *onet.Roster
	// Offset is in seconds.
	Offset int64
}

// SetTimestampOffsetReply returns the ledger time after the change.
type SetTimestampOffsetReply struct {
	Now uint64
}

// GetApp asks for an application.
type GetApp struct {
	App uint64
}

// GetAppReply returns the application and the current ledger time.
type GetAppReply struct {
	App ledger.AppInfo
	Now uint64
}

// GetGlobalState asks for the global state of an application.
type GetGlobalState struct {
	App uint64
}

// GetLocalState asks for the local state of an account in an application.
type GetLocalState struct {
	App     uint64
	Address chain.Address
}

// GetStateReply returns the entries sorted by key.
type GetStateReply struct {
	Entries []chain.KeyValue
}

// GetBalance asks what an account holds of an asset.
type GetBalance struct {
	Address chain.Address
	Asset   chain.AssetID
}

// GetBalanceReply is false in OptedIn if the account cannot hold the asset.
type GetBalanceReply struct {
	Amount  uint64
	OptedIn bool
}

// CreateAsset creates an asset owned by the signer.
type CreateAsset struct {
	Roster *onet.Roster
	Params ledger.AssetParams
	Auth   Auth
}

// CreateAssetReply returns the id of the new asset.
type CreateAssetReply struct {
	Asset chain.AssetID
}

// OptInAsset lets the signer hold an asset.
type OptInAsset struct {
	Roster *onet.Roster
	Asset  chain.AssetID
	Auth   Auth
}

// OptInAssetReply is returned on success.
type OptInAssetReply struct{}

// Pay transfers from the signer to Receiver.
type Pay struct {
	Roster   *onet.Roster
	Receiver chain.Address
	Asset    chain.AssetID
	Amount   uint64
	Auth     Auth
}

// PayReply is returned on success.
type PayReply struct{}

// CreateApp creates an application of the given contract kind with the
// signer as creator.
type CreateApp struct {
	Roster *onet.Roster
	Kind   string
	Auth   Auth
}

// CreateAppReply returns the new application.
type CreateAppReply struct {
	App ledger.AppInfo
}

// OptInApp gives the signer local state in an application.
type OptInApp struct {
	Roster *onet.Roster
	App    uint64
	Auth   Auth
}

// OptInAppReply is returned on success.
type OptInAppReply struct{}

// Invoke calls a method of an application. Payment, if set, is paid by the
// signer to the escrow of the application in the same call.
type Invoke struct {
	Roster  *onet.Roster
	App     uint64
	Method  string
	Args    chain.Arguments
	Payment *Payment
	OptIn   bool
	Auth    Auth
}

// Payment is the companion transfer of an Invoke.
type Payment struct {
	Asset  chain.AssetID
	Amount uint64
}

// InvokeReply holds what the method returned.
type InvokeReply struct {
	Return []byte
}

// DeleteApp deletes an application created by the signer.
type DeleteApp struct {
	Roster *onet.Roster
	App    uint64
	Auth   Auth
}

// DeleteAppReply is returned on success.
type DeleteAppReply struct{}
