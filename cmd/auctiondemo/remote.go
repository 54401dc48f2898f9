package main

import (
	"os"

	"github.com/dedis/auction_contracts/chain"
	"github.com/dedis/auction_contracts/ledger"
	"github.com/dedis/auction_contracts/service"
	"github.com/urfave/cli"
	"go.dedis.ch/onet/v3/app"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

func remoteAction(c *cli.Context) error {
	f, err := os.Open(c.String("group"))
	if err != nil {
		return xerrors.Errorf("opening group file: %v", err)
	}
	defer f.Close()
	group, err := app.ReadGroupDescToml(f)
	if err != nil {
		return xerrors.Errorf("reading group file: %v", err)
	}
	if group.Roster == nil || len(group.Roster.List) == 0 {
		return xerrors.New("empty roster")
	}
	return runRemote(service.NewClient(group.Roster), readParams(c))
}

func runRemote(cl *service.Client, p params) error {
	seller, alice, bob := service.NewAccount(), service.NewAccount(), service.NewAccount()
	for _, b := range []service.Account{alice, bob} {
		if err := cl.Fund(b.Address(), p.funds); err != nil {
			return err
		}
	}

	asset, err := cl.CreateAsset(seller, ledger.AssetParams{Total: 1, Name: "Mona Lisa", Unit: "painting"})
	if err != nil {
		return err
	}
	ac, err := cl.NewAuction(seller, asset)
	if err != nil {
		return err
	}
	log.Infof("auction %d created", ac.App)
	end, err := ac.Start(seller, asset, p.price, p.length)
	if err != nil {
		return err
	}
	log.Infof("auction started at %s, ends at %d", native(p.price), end)

	first, second := p.bids()
	if err := ac.Bid(alice, first); err != nil {
		return err
	}
	if err := ac.Bid(bob, second); err != nil {
		return err
	}
	ad, err := ac.Data()
	if err != nil {
		return err
	}
	log.Infof("highest bid is %s by %s", native(ad.HighestBid), ad.HighestBidder)

	refund, err := ac.ClaimBids(alice)
	if err != nil {
		return err
	}
	log.Infof("%s took back %s", alice.Address(), native(refund))

	if err := advancePast(cl, end); err != nil {
		return err
	}
	if err := cl.OptInAsset(bob, asset); err != nil {
		return err
	}
	if err := ac.ClaimAsset(bob, asset); err != nil {
		return err
	}
	log.Infof("%s claimed the asset", bob.Address())

	if err := ac.Delete(seller); err != nil {
		return err
	}
	earned, err := cl.Balance(seller.Address(), chain.NativeAsset)
	if err != nil {
		return err
	}
	log.Infof("auction deleted, seller holds %s", native(earned))
	return nil
}

// advancePast moves the clock of the roster to after end. The clock never
// goes back behind the last call, so the offset may need more than one
// step.
func advancePast(cl *service.Client, end uint64) error {
	var offset int64
	for i := 0; i < 10; i++ {
		now, err := cl.SetTimestampOffset(offset)
		if err != nil {
			return err
		}
		if now > end {
			return nil
		}
		offset += int64(end-now) + 1
	}
	return xerrors.Errorf("clock didn't pass %d", end)
}
