package service

import (
	"github.com/dedis/auction_contracts/auctions"
	"github.com/dedis/auction_contracts/chain"
	"github.com/dedis/auction_contracts/ledger"
	"github.com/dedis/auction_contracts/tictactoe"
	"github.com/dedis/auction_contracts/voting"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
)

// Client is a structure to communicate with the ledger service of a
// roster. Requests go to the first node, which replicates them to the
// others.
type Client struct {
	*onet.Client
	Roster *onet.Roster
}

// NewClient instantiates a new Client.
func NewClient(r *onet.Roster) *Client {
	return &Client{Client: onet.NewClient(cothority.Suite, ServiceName), Roster: r}
}

func (c *Client) leader() *network.ServerIdentity {
	return c.Roster.List[0]
}

func (c *Client) send(req interface{}, reply interface{}) error {
	dst := c.leader()
	log.Lvl4("Sending message to", dst)
	return c.SendProtobuf(dst, req, reply)
}

func (c *Client) sendSigned(signer Account, req signedRequest, reply interface{}) error {
	if err := signer.sign(req); err != nil {
		return err
	}
	return c.send(req, reply)
}

// Fund credits addr from the faucet.
func (c *Client) Fund(addr chain.Address, amount uint64) error {
	return c.send(&Fund{Roster: c.Roster, Address: addr, Amount: amount}, &FundReply{})
}

// SetTimestampOffset shifts the clock of all nodes and returns the new
// ledger time.
func (c *Client) SetTimestampOffset(seconds int64) (uint64, error) {
	reply := &SetTimestampOffsetReply{}
	err := c.send(&SetTimestampOffset{Roster: c.Roster, Offset: seconds}, reply)
	return reply.Now, err
}

// GetApp returns an application and the ledger time.
func (c *Client) GetApp(app uint64) (*GetAppReply, error) {
	reply := &GetAppReply{}
	if err := c.send(&GetApp{App: app}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// GlobalState returns the global state of an application.
func (c *Client) GlobalState(app uint64) (chain.Store, error) {
	reply := &GetStateReply{}
	if err := c.send(&GetGlobalState{App: app}, reply); err != nil {
		return nil, err
	}
	return chain.NewMemStore(reply.Entries...), nil
}

// LocalState returns the local state of addr in an application.
func (c *Client) LocalState(app uint64, addr chain.Address) (chain.Store, error) {
	reply := &GetStateReply{}
	if err := c.send(&GetLocalState{App: app, Address: addr}, reply); err != nil {
		return nil, err
	}
	return chain.NewMemStore(reply.Entries...), nil
}

// Balance returns what addr holds of asset.
func (c *Client) Balance(addr chain.Address, asset chain.AssetID) (uint64, error) {
	reply := &GetBalanceReply{}
	if err := c.send(&GetBalance{Address: addr, Asset: asset}, reply); err != nil {
		return 0, err
	}
	return reply.Amount, nil
}

// CreateAsset creates an asset owned by signer.
func (c *Client) CreateAsset(signer Account, params ledger.AssetParams) (chain.AssetID, error) {
	reply := &CreateAssetReply{}
	err := c.sendSigned(signer, &CreateAsset{Roster: c.Roster, Params: params}, reply)
	return reply.Asset, err
}

// OptInAsset lets signer hold asset.
func (c *Client) OptInAsset(signer Account, asset chain.AssetID) error {
	return c.sendSigned(signer, &OptInAsset{Roster: c.Roster, Asset: asset}, &OptInAssetReply{})
}

// Pay sends amount of asset from signer to receiver.
func (c *Client) Pay(signer Account, receiver chain.Address, asset chain.AssetID, amount uint64) error {
	return c.sendSigned(signer, &Pay{Roster: c.Roster, Receiver: receiver, Asset: asset,
		Amount: amount}, &PayReply{})
}

// CreateApp creates an application of the given kind.
func (c *Client) CreateApp(signer Account, kind string) (ledger.AppInfo, error) {
	reply := &CreateAppReply{}
	err := c.sendSigned(signer, &CreateApp{Roster: c.Roster, Kind: kind}, reply)
	return reply.App, err
}

// OptInApp gives signer local state in an application.
func (c *Client) OptInApp(signer Account, app uint64) error {
	return c.sendSigned(signer, &OptInApp{Roster: c.Roster, App: app}, &OptInAppReply{})
}

// Invoke calls a method of an application, paying payment to its escrow
// if it is not nil.
func (c *Client) Invoke(signer Account, app uint64, method string, args chain.Arguments,
	payment *Payment) ([]byte, error) {
	reply := &InvokeReply{}
	err := c.sendSigned(signer, &Invoke{Roster: c.Roster, App: app, Method: method,
		Args: args, Payment: payment}, reply)
	return reply.Return, err
}

// DeleteApp deletes an application.
func (c *Client) DeleteApp(signer Account, app uint64) error {
	return c.sendSigned(signer, &DeleteApp{Roster: c.Roster, App: app}, &DeleteAppReply{})
}

func (c *Client) invokeUint64(signer Account, app uint64, method string, args chain.Arguments,
	payment *Payment) (uint64, error) {
	ret, err := c.Invoke(signer, app, method, args, payment)
	if err != nil {
		return 0, err
	}
	return chain.BytesUint64(ret)
}

// AuctionClient drives one auction application.
type AuctionClient struct {
	*Client
	App uint64
}

// NewAuction creates an auction sold by seller and has its escrow opt into
// asset.
func (c *Client) NewAuction(seller Account, asset chain.AssetID) (*AuctionClient, error) {
	ai, err := c.CreateApp(seller, auctions.ContractAuctionID)
	if err != nil {
		return nil, err
	}
	ac := &AuctionClient{Client: c, App: ai.ID}
	_, err = c.Invoke(seller, ai.ID, auctions.MethodOptIntoAsset,
		chain.Arguments{chain.Uint64Arg(auctions.ArgAsset, uint64(asset))}, nil)
	if err != nil {
		return nil, err
	}
	return ac, nil
}

// Start deposits the asset and opens the auction. It returns the end time.
func (ac *AuctionClient) Start(seller Account, asset chain.AssetID, startingPrice,
	length uint64) (uint64, error) {
	return ac.invokeUint64(seller, ac.App, auctions.MethodStartAuction, chain.Arguments{
		chain.Uint64Arg(auctions.ArgStartingPrice, startingPrice),
		chain.Uint64Arg(auctions.ArgLength, length),
	}, &Payment{Asset: asset, Amount: 1})
}

// Bid bids amount, opting bidder in if needed.
func (ac *AuctionClient) Bid(bidder Account, amount uint64) error {
	req := &Invoke{Roster: ac.Roster, App: ac.App, Method: auctions.MethodBid,
		Payment: &Payment{Asset: chain.NativeAsset, Amount: amount}, OptIn: true}
	return ac.sendSigned(bidder, req, &InvokeReply{})
}

// ClaimBids returns what bidder got back.
func (ac *AuctionClient) ClaimBids(bidder Account) (uint64, error) {
	return ac.invokeUint64(bidder, ac.App, auctions.MethodClaimBids, nil, nil)
}

// ClaimAsset hands the asset to the winner.
func (ac *AuctionClient) ClaimAsset(winner Account, asset chain.AssetID) error {
	_, err := ac.Invoke(winner, ac.App, auctions.MethodClaimAsset,
		chain.Arguments{chain.Uint64Arg(auctions.ArgAsset, uint64(asset))}, nil)
	return err
}

// Delete pays the seller and removes the auction.
func (ac *AuctionClient) Delete(seller Account) error {
	return ac.DeleteApp(seller, ac.App)
}

// Data returns the auction as stored on the ledger.
func (ac *AuctionClient) Data() (auctions.AuctionData, error) {
	st, err := ac.GlobalState(ac.App)
	if err != nil {
		return auctions.AuctionData{}, err
	}
	return auctions.ReadData(st)
}

// Vote pays the voting fee and votes in a voting application. It returns
// false if voter already voted.
func (c *Client) Vote(voter Account, app uint64) (bool, error) {
	req := &Invoke{Roster: c.Roster, App: app, Method: voting.MethodVote,
		Payment: &Payment{Asset: chain.NativeAsset, Amount: voting.VoteFee}, OptIn: true}
	reply := &InvokeReply{}
	if err := c.sendSigned(voter, req, reply); err != nil {
		return false, err
	}
	return len(reply.Return) == 1 && reply.Return[0] == 1, nil
}

// Votes returns the votes counted by a voting application.
func (c *Client) Votes(caller Account, app uint64) (uint64, error) {
	return c.invokeUint64(caller, app, voting.MethodGetVotes, nil, nil)
}

// NewGame pays the deposit and hosts a tic-tac-toe game.
func (c *Client) NewGame(host Account, app uint64) (uint64, error) {
	req := &Invoke{Roster: c.Roster, App: app, Method: tictactoe.MethodNewGame,
		Payment: &Payment{Asset: chain.NativeAsset, Amount: tictactoe.GameDeposit}, OptIn: true}
	reply := &InvokeReply{}
	if err := c.sendSigned(host, req, reply); err != nil {
		return 0, err
	}
	return chain.BytesUint64(reply.Return)
}

// JoinGame makes guest the second player of a game.
func (c *Client) JoinGame(guest Account, app, game uint64) error {
	req := &Invoke{Roster: c.Roster, App: app, Method: tictactoe.MethodJoin,
		Args: chain.Arguments{chain.Uint64Arg(tictactoe.ArgGame, game)}, OptIn: true}
	return c.sendSigned(guest, req, &InvokeReply{})
}

// Move plays cell (x, y).
func (c *Client) Move(player Account, app, game, x, y uint64) error {
	_, err := c.Invoke(player, app, tictactoe.MethodMove, chain.Arguments{
		chain.Uint64Arg(tictactoe.ArgGame, game),
		chain.Uint64Arg(tictactoe.ArgX, x),
		chain.Uint64Arg(tictactoe.ArgY, y),
	}, nil)
	return err
}
