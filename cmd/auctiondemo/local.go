package main

import (
	"time"

	"github.com/dedis/auction_contracts/auctions"
	"github.com/dedis/auction_contracts/chain"
	"github.com/dedis/auction_contracts/ledger"
	"github.com/dedis/auction_contracts/service"
	"github.com/urfave/cli"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// localDemo runs the calls a client would send directly on a ledger.
type localDemo struct {
	l      *ledger.Ledger
	app    ledger.AppInfo
	params params
	// refund and earned are what the outbid bidder and the seller got.
	refund uint64
	earned uint64
}

func localAction(c *cli.Context) error {
	l, err := ledger.Open(c.String("db"))
	if err != nil {
		return err
	}
	defer l.Close()
	d := &localDemo{l: l, params: readParams(c)}
	return d.run()
}

func (d *localDemo) call(sender chain.Address, method string, args chain.Arguments,
	companion *chain.Transfer) ([]byte, error) {
	return d.l.Call(ledger.Call{App: d.app.ID, Sender: sender, Method: method,
		Args: args, Companion: companion, OptIn: true})
}

func (d *localDemo) run() error {
	seller := service.NewAccount().Address()
	alice := service.NewAccount().Address()
	bob := service.NewAccount().Address()
	for _, b := range []chain.Address{alice, bob} {
		if err := d.l.Fund(b, d.params.funds); err != nil {
			return err
		}
	}

	asset, err := d.l.CreateAsset(seller, ledger.AssetParams{Total: 1, Name: "Mona Lisa", Unit: "painting"})
	if err != nil {
		return err
	}
	d.app, err = d.l.CreateApp(seller, auctions.ContractAuctionID)
	if err != nil {
		return err
	}
	log.Infof("auction %d created, escrow is %s", d.app.ID, d.app.Escrow)

	assetArg := chain.Arguments{chain.Uint64Arg(auctions.ArgAsset, uint64(asset))}
	if _, err := d.call(seller, auctions.MethodOptIntoAsset, assetArg, nil); err != nil {
		return err
	}
	ret, err := d.call(seller, auctions.MethodStartAuction, chain.Arguments{
		chain.Uint64Arg(auctions.ArgStartingPrice, d.params.price),
		chain.Uint64Arg(auctions.ArgLength, d.params.length),
	}, &chain.Transfer{Sender: seller, Receiver: d.app.Escrow, Asset: asset, Amount: 1})
	if err != nil {
		return err
	}
	end, err := chain.BytesUint64(ret)
	if err != nil {
		return err
	}
	log.Infof("auction started at %s, ends at %d", native(d.params.price), end)

	first, second := d.params.bids()
	for _, bid := range []struct {
		bidder chain.Address
		amount uint64
	}{{alice, first}, {bob, second}} {
		_, err := d.call(bid.bidder, auctions.MethodBid, nil,
			&chain.Transfer{Sender: bid.bidder, Receiver: d.app.Escrow, Amount: bid.amount})
		if err != nil {
			return xerrors.Errorf("bid of %s: %v", native(bid.amount), err)
		}
		log.Infof("%s bid %s", bid.bidder, native(bid.amount))
	}

	ret, err = d.call(alice, auctions.MethodClaimBids, nil, nil)
	if err != nil {
		return err
	}
	d.refund, err = chain.BytesUint64(ret)
	if err != nil {
		return err
	}
	log.Infof("%s took back %s", alice, native(d.refund))

	// Jump past the end of the auction.
	if err := d.l.SetTimestampOffset(time.Duration(int64(end)-time.Now().Unix()+1) * time.Second); err != nil {
		return err
	}
	if err := d.l.OptInAsset(bob, asset); err != nil {
		return err
	}
	if _, err := d.call(bob, auctions.MethodClaimAsset, assetArg, nil); err != nil {
		return err
	}
	log.Infof("%s claimed the asset", bob)

	if err := d.l.DeleteApp(d.app.ID, seller); err != nil {
		return err
	}
	d.earned, _, err = d.l.Balance(seller, chain.NativeAsset)
	if err != nil {
		return err
	}
	log.Infof("auction deleted, seller holds %s", native(d.earned))
	return nil
}
