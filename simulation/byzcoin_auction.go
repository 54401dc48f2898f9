package main

import (
	"errors"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dedis/auction_contracts/auctions"
	"github.com/dedis/auction_contracts/chain"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/byzcoin/contracts"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/cothority/v3/darc/expression"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/simul/monitor"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

func init() {
	onet.SimulationRegister("ByzCoinAuction", NewSimulationByzCoinAuction)
}

// SimulationByzCoinAuction runs auctions as byzcoin instances. Every round
// mints a new asset, auctions it and settles the auction.
type SimulationByzCoinAuction struct {
	onet.SimulationBFTree
	BlockInterval string
	Bidders       int
	Bids          int
}

// NewSimulationByzCoinAuction returns the new simulation, where all fields
// are initialised using the config-file
func NewSimulationByzCoinAuction(config string) (onet.Simulation, error) {
	es := &SimulationByzCoinAuction{}
	_, err := toml.Decode(config, es)
	if err != nil {
		return nil, err
	}
	return es, nil
}

// Setup creates the tree used for that simulation
func (s *SimulationByzCoinAuction) Setup(dir string, hosts []string) (
	*onet.SimulationConfig, error) {
	sc := &onet.SimulationConfig{}
	s.CreateRoster(sc, hosts, 2000)
	err := s.CreateTree(sc)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Node can be used to initialize each node before it will be run
// by the server. Here we call the 'Node'-method of the
// SimulationBFTree structure which will load the roster- and the
// tree-structure to speed up the first round.
func (s *SimulationByzCoinAuction) Node(config *onet.SimulationConfig) error {
	index, _ := config.Roster.Search(config.Server.ServerIdentity.ID)
	if index < 0 {
		log.Fatal("Didn't find this node in roster")
	}
	log.Lvl3("Initializing node-index", index)
	return s.SimulationBFTree.Node(config)
}

// bcSession signs transactions for several signers and keeps their
// counters.
type bcSession struct {
	cl       *byzcoin.Client
	darcID   darc.ID
	counters map[string]uint64
}

func (bs *bcSession) send(signer darc.Signer, instrs ...byzcoin.Instruction) (byzcoin.ClientTransaction, error) {
	id := signer.Identity().String()
	ct := bs.counters[id]
	for i := range instrs {
		instrs[i].SignerCounter = []uint64{ct + uint64(i) + 1}
	}
	tx := byzcoin.NewClientTransaction(byzcoin.CurrentVersion, instrs...)
	if err := tx.FillSignersAndSignWith(signer); err != nil {
		return tx, errors.New("signing of instruction failed: " + err.Error())
	}
	if _, err := bs.cl.AddTransactionAndWait(tx, 10); err != nil {
		return tx, err
	}
	bs.counters[id] = ct + uint64(len(instrs))
	return tx, nil
}

func (bs *bcSession) spawn(signer darc.Signer, contractID string, args ...byzcoin.Argument) (byzcoin.InstanceID, error) {
	tx, err := bs.send(signer, byzcoin.Instruction{
		InstanceID: byzcoin.NewInstanceID(bs.darcID),
		Spawn:      &byzcoin.Spawn{ContractID: contractID, Args: args},
	})
	if err != nil {
		return byzcoin.InstanceID{}, err
	}
	return tx.Instructions[0].DeriveID(""), nil
}

func (bs *bcSession) account(signer darc.Signer, asset chain.AssetID, amount uint64) (byzcoin.InstanceID, error) {
	id, err := bs.spawn(signer, contracts.ContractCoinID,
		byzcoin.Argument{Name: "type", Value: auctions.AssetCoinName(asset).Slice()})
	if err != nil {
		return id, xerrors.Errorf("couldn't create account: %v", err)
	}
	if amount > 0 {
		_, err = bs.send(signer, coinInstr(id, "mint", amount))
	}
	return id, err
}

func (bs *bcSession) coins(id byzcoin.InstanceID) (uint64, int, error) {
	reply, err := bs.cl.GetProof(id.Slice())
	if err != nil {
		return 0, 0, err
	}
	_, val, _, _, err := reply.Proof.KeyValue()
	if err != nil {
		return 0, 0, err
	}
	coin := byzcoin.Coin{}
	if err := protobuf.Decode(val, &coin); err != nil {
		return 0, 0, err
	}
	return coin.Value, reply.Proof.Latest.Index, nil
}

func coinInstr(id byzcoin.InstanceID, command string, amount uint64) byzcoin.Instruction {
	inv := &byzcoin.Invoke{ContractID: contracts.ContractCoinID, Command: command}
	if command != "store" {
		inv.Args = byzcoin.Arguments{{Name: "coins", Value: chain.Uint64Bytes(amount)}}
	}
	return byzcoin.Instruction{InstanceID: id, Invoke: inv}
}

func auctionInstr(id byzcoin.InstanceID, command string, args ...byzcoin.Argument) byzcoin.Instruction {
	return byzcoin.Instruction{
		InstanceID: id,
		Invoke:     &byzcoin.Invoke{ContractID: auctions.ContractAuctionID, Command: command, Args: args},
	}
}

func uint64Arg(name string, v uint64) byzcoin.Argument {
	return byzcoin.Argument{Name: name, Value: chain.Uint64Bytes(v)}
}

// Run is used on the destination machines and runs a number of
// rounds
func (s *SimulationByzCoinAuction) Run(config *onet.SimulationConfig) error {
	size := config.Tree.Size()
	log.Lvl2("Size is:", size, "rounds:", s.Rounds)

	seller := darc.NewSignerEd25519(nil, nil)
	bidders := make([]darc.Signer, s.Bidders)
	ids := []darc.Identity{seller.Identity()}
	idStrings := []string{seller.Identity().String()}
	for i := range bidders {
		bidders[i] = darc.NewSignerEd25519(nil, nil)
		ids = append(ids, bidders[i].Identity())
		idStrings = append(idStrings, bidders[i].Identity().String())
	}

	rules := []string{
		"spawn:" + auctions.ContractAuctionID,
		"invoke:" + auctions.ContractAuctionID + "." + auctions.MethodStartAuction,
		"invoke:" + auctions.ContractAuctionID + "." + auctions.MethodBid,
		"invoke:" + auctions.ContractAuctionID + "." + auctions.MethodClaimBids,
		"invoke:" + auctions.ContractAuctionID + "." + auctions.MethodClaimAsset,
		"delete:" + auctions.ContractAuctionID,
		"spawn:coin", "invoke:coin.mint", "invoke:coin.fetch", "invoke:coin.store",
	}
	gm, err := byzcoin.DefaultGenesisMsg(byzcoin.CurrentVersion, config.Roster, rules, ids...)
	if err != nil {
		return errors.New("couldn't setup genesis message: " + err.Error())
	}
	// Every signer acts alone.
	anyOf := expression.InitOrExpr(idStrings...)
	for _, r := range rules {
		if err := gm.GenesisDarc.Rules.UpdateRule(darc.Action(r), anyOf); err != nil {
			return errors.New("couldn't update genesis rules: " + err.Error())
		}
	}

	// Set block interval from the simulation config.
	blockInterval, err := time.ParseDuration(s.BlockInterval)
	if err != nil {
		return errors.New("parse duration of BlockInterval failed: " + err.Error())
	}
	gm.BlockInterval = blockInterval

	c, _, err := byzcoin.NewLedger(gm, false)
	if err != nil {
		return errors.New("couldn't create genesis block: " + err.Error())
	}
	bs := &bcSession{cl: c, darcID: gm.GenesisDarc.GetBaseID(), counters: make(map[string]uint64)}

	// Every bidder can afford all of its bids of a round, refunds come
	// back at the end of each round and winning bids don't.
	perRound := uint64(s.Bids * s.Bidders)
	budget := uint64(s.Bids)*perRound + uint64(s.Rounds)*perRound
	sellerCoins, err := bs.account(seller, chain.NativeAsset, 0)
	if err != nil {
		return err
	}
	bidderCoins := make([]byzcoin.InstanceID, s.Bidders)
	for i, b := range bidders {
		if bidderCoins[i], err = bs.account(b, chain.NativeAsset, budget); err != nil {
			return err
		}
	}

	var earned uint64
	for round := 0; round < s.Rounds; round++ {
		log.Lvl1("Starting round", round)
		roundM := monitor.NewTimeMeasure("round")
		asset := chain.AssetID(round + 1)

		setup := monitor.NewTimeMeasure("setup")
		sellerAsset, err := bs.account(seller, asset, 1)
		if err != nil {
			return err
		}
		auctionID, err := bs.spawn(seller, auctions.ContractAuctionID, uint64Arg(auctions.ArgAsset, uint64(asset)))
		if err != nil {
			return errors.New("couldn't spawn auction: " + err.Error())
		}
		// Each transaction takes at least one block: leave room for all bids.
		length := uint64(2*s.Bids*s.Bidders + 5)
		_, err = bs.send(seller, coinInstr(sellerAsset, "fetch", 1),
			auctionInstr(auctionID, auctions.MethodStartAuction,
				uint64Arg(auctions.ArgStartingPrice, 0), uint64Arg(auctions.ArgLength, length)))
		if err != nil {
			return errors.New("couldn't start auction: " + err.Error())
		}
		setup.Record()

		bid := monitor.NewTimeMeasure("bid")
		amount := uint64(0)
		for loop1 := 0; loop1 < s.Bids; loop1++ {
			for loop2 := 0; loop2 < s.Bidders; loop2++ {
				amount++
				_, err = bs.send(bidders[loop2], coinInstr(bidderCoins[loop2], "fetch", amount),
					auctionInstr(auctionID, auctions.MethodBid))
				if err != nil {
					return errors.New("couldn't bid: " + err.Error())
				}
			}
		}
		bid.Record()

		confirm := monitor.NewTimeMeasure("confirm")
		winner := (s.Bids*s.Bidders - 1) % s.Bidders
		for i, b := range bidders {
			// The winner only has something to claim if it was outbid
			// before.
			if i == winner && s.Bids == 1 {
				continue
			}
			_, err = bs.send(b, auctionInstr(auctionID, auctions.MethodClaimBids),
				coinInstr(bidderCoins[i], "store", 0))
			if err != nil {
				return errors.New("couldn't claim bids: " + err.Error())
			}
		}
		if err := s.waitEnd(bs, seller, sellerCoins, length); err != nil {
			return err
		}
		winnerAsset, err := bs.account(bidders[winner], asset, 0)
		if err != nil {
			return err
		}
		_, err = bs.send(bidders[winner],
			auctionInstr(auctionID, auctions.MethodClaimAsset, uint64Arg(auctions.ArgAsset, uint64(asset))),
			coinInstr(winnerAsset, "store", 0))
		if err != nil {
			return errors.New("couldn't claim asset: " + err.Error())
		}
		_, err = bs.send(seller, byzcoin.Instruction{
			InstanceID: auctionID,
			Delete:     &byzcoin.Delete{ContractID: auctions.ContractAuctionID},
		}, coinInstr(sellerCoins, "store", 0))
		if err != nil {
			return errors.New("couldn't delete auction: " + err.Error())
		}

		earned += amount
		value, _, err := bs.coins(sellerCoins)
		if err != nil {
			return errors.New("couldn't get proof for seller account: " + err.Error())
		}
		log.Lvlf1("Seller account has %d", value)
		if value != earned {
			return errors.New("seller account has wrong amount")
		}
		confirm.Record()
		roundM.Record()

		// This sleep is needed to wait for the propagation to finish
		// on all the nodes. Otherwise the simulation manager
		// (runsimul.go in onet) might close some nodes and cause
		// skipblock propagation to fail.
		time.Sleep(blockInterval)
	}

	// We wait a bit before closing because c.GetProof is sent to the
	// leader, but at this point some of the children might still be doing
	// updateCollection. If we stop the simulation immediately, then the
	// database gets closed and updateCollection on the children fails to
	// complete.
	time.Sleep(time.Second)
	return nil
}

// waitEnd makes blocks until the auction that was started less than length
// blocks ago ended.
func (s *SimulationByzCoinAuction) waitEnd(bs *bcSession, signer darc.Signer,
	account byzcoin.InstanceID, length uint64) error {
	_, start, err := bs.coins(account)
	if err != nil {
		return err
	}
	for i := uint64(0); i <= length; i++ {
		if _, err := bs.send(signer, coinInstr(account, "mint", 0)); err != nil {
			return err
		}
		_, index, err := bs.coins(account)
		if err != nil {
			return err
		}
		if uint64(index) > uint64(start)+length {
			return nil
		}
	}
	return errors.New("auction didn't end")
}
