package auctions

import (
	"testing"

	"github.com/dedis/auction_contracts/chain"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
)

func TestContractAuction_ByzCoin(t *testing.T) {
	sellerS := darc.NewSignerEd25519(nil, nil)
	aliceS := darc.NewSignerEd25519(nil, nil)
	bobS := darc.NewSignerEd25519(nil, nil)

	// Create a new ledger and prepare for proper closing
	bct := newBCTest(t, sellerS, aliceS, bobS)
	defer bct.Close()

	asset := chain.AssetID(1)
	sellerAsset := bct.createAccount(t, sellerS, asset)
	bct.mint(t, sellerS, sellerAsset, 1)
	sellerCoins := bct.createAccount(t, sellerS, chain.NativeAsset)
	aliceCoins := bct.createAccount(t, aliceS, chain.NativeAsset)
	bct.mint(t, aliceS, aliceCoins, 10000000)
	bobCoins := bct.createAccount(t, bobS, chain.NativeAsset)
	bct.mint(t, bobS, bobCoins, 10000000)
	bobAsset := bct.createAccount(t, bobS, asset)

	auctID := bct.spawnAuction(t, sellerS, asset)
	ad := bct.auction(t, auctID)
	require.Equal(t, asset, ad.AssetID)
	require.Equal(t, chain.Address(sellerS.Identity().String()), ad.Seller)

	// The length is counted in blocks.
	_, err := bct.send(sellerS, fetch(sellerAsset, 1),
		invokeAuction(auctID, MethodStartAuction,
			uint64Arg(ArgStartingPrice, 1000000), uint64Arg(ArgLength, 12)))
	require.NoError(t, err)
	require.Equal(t, uint64(0), bct.coins(t, sellerAsset))

	_, err = bct.send(aliceS, fetch(aliceCoins, 1100000), invokeAuction(auctID, MethodBid))
	require.NoError(t, err)
	_, err = bct.send(bobS, fetch(bobCoins, 2000000), invokeAuction(auctID, MethodBid))
	require.NoError(t, err)
	// An equal bid is refused and alice keeps her coins.
	_, err = bct.send(aliceS, fetch(aliceCoins, 2000000), invokeAuction(auctID, MethodBid))
	require.Error(t, err)
	require.Equal(t, uint64(10000000-1100000), bct.coins(t, aliceCoins))

	ad = bct.auction(t, auctID)
	require.Equal(t, uint64(2000000), ad.HighestBid)
	require.Equal(t, chain.Address(bobS.Identity().String()), ad.HighestBidder)

	claimAsset := invokeAuction(auctID, MethodClaimAsset, uint64Arg(ArgAsset, uint64(asset)))
	_, err = bct.send(bobS, claimAsset, store(bobAsset))
	require.Error(t, err, "auction not ended")

	bct.waitBlock(t, bobS, bobCoins, ad.EndTime)
	_, err = bct.send(bobS, claimAsset, store(bobAsset))
	require.NoError(t, err)
	require.Equal(t, uint64(1), bct.coins(t, bobAsset))
	_, err = bct.send(bobS, claimAsset, store(bobAsset))
	require.Error(t, err, "asset already claimed")

	deleteAuction := byzcoin.Instruction{
		InstanceID: auctID,
		Delete:     &byzcoin.Delete{ContractID: ContractAuctionID},
	}
	// Alice's refund is still in the auction.
	_, err = bct.send(sellerS, deleteAuction, store(sellerCoins))
	require.Error(t, err)
	require.Equal(t, uint64(0), bct.coins(t, sellerCoins))
	require.Equal(t, uint64(1100000), bct.auction(t, auctID).Refunds)

	_, err = bct.send(aliceS, invokeAuction(auctID, MethodClaimBids), store(aliceCoins))
	require.NoError(t, err)
	require.Equal(t, uint64(10000000), bct.coins(t, aliceCoins))
	_, err = bct.send(aliceS, invokeAuction(auctID, MethodClaimBids), store(aliceCoins))
	require.Error(t, err)

	_, err = bct.send(sellerS, deleteAuction, store(sellerCoins))
	require.NoError(t, err)
	require.Equal(t, uint64(2000000), bct.coins(t, sellerCoins))
}
