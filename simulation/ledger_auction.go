package main

import (
	"errors"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/dedis/auction_contracts/ledger"
	"github.com/dedis/auction_contracts/service"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"go.dedis.ch/onet/v3/simul/monitor"
)

func init() {
	onet.SimulationRegister("LedgerAuction", NewSimulationLedgerAuction)
}

// SimulationLedgerAuction runs auctions on the ledger service, every
// request being replicated to the whole roster.
type SimulationLedgerAuction struct {
	onet.SimulationBFTree
	Bidders int
	Bids    int
	// Length of every auction in seconds of ledger time.
	Length uint64
}

// NewSimulationLedgerAuction returns the new simulation, where all fields
// are initialised using the config-file
func NewSimulationLedgerAuction(config string) (onet.Simulation, error) {
	es := &SimulationLedgerAuction{Length: 3600}
	_, err := toml.Decode(config, es)
	if err != nil {
		return nil, err
	}
	return es, nil
}

// Setup creates the tree used for that simulation
func (s *SimulationLedgerAuction) Setup(dir string, hosts []string) (
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
func (s *SimulationLedgerAuction) Node(config *onet.SimulationConfig) error {
	index, _ := config.Roster.Search(config.Server.ServerIdentity.ID)
	if index < 0 {
		log.Fatal("Didn't find this node in roster")
	}
	log.Lvl3("Initializing node-index", index)
	return s.SimulationBFTree.Node(config)
}

// Run is used on the destination machines and runs a number of
// rounds
func (s *SimulationLedgerAuction) Run(config *onet.SimulationConfig) error {
	size := config.Tree.Size()
	log.Lvl2("Size is:", size, "rounds:", s.Rounds)

	c := service.NewClient(config.Roster)
	seller := service.NewAccount()
	bidders := make([]service.Account, s.Bidders)
	perRound := uint64(s.Bids * s.Bidders)
	for i := range bidders {
		bidders[i] = service.NewAccount()
		if err := c.Fund(bidders[i].Address(), uint64(s.Bids)*perRound+uint64(s.Rounds)*perRound); err != nil {
			return err
		}
	}

	var offset int64
	for round := 0; round < s.Rounds; round++ {
		log.Lvl1("Starting round", round)
		roundM := monitor.NewTimeMeasure("round")

		setup := monitor.NewTimeMeasure("setup")
		asset, err := c.CreateAsset(seller, ledger.AssetParams{Total: 1,
			Name: "lot " + strconv.Itoa(round), Unit: "lot"})
		if err != nil {
			return err
		}
		ac, err := c.NewAuction(seller, asset)
		if err != nil {
			return err
		}
		if _, err := ac.Start(seller, asset, 0, s.Length); err != nil {
			return err
		}
		setup.Record()

		bid := monitor.NewTimeMeasure("bid")
		amount := uint64(0)
		for loop1 := 0; loop1 < s.Bids; loop1++ {
			for loop2 := 0; loop2 < s.Bidders; loop2++ {
				amount++
				if err := ac.Bid(bidders[loop2], amount); err != nil {
					return errors.New("couldn't bid: " + err.Error())
				}
			}
		}
		bid.Record()

		confirm := monitor.NewTimeMeasure("confirm")
		winner := (s.Bids*s.Bidders - 1) % s.Bidders
		for i, b := range bidders {
			if i == winner && s.Bids == 1 {
				continue
			}
			if _, err := ac.ClaimBids(b); err != nil {
				return errors.New("couldn't claim bids: " + err.Error())
			}
		}
		offset += int64(s.Length)
		if _, err := c.SetTimestampOffset(offset); err != nil {
			return err
		}
		if err := c.OptInAsset(bidders[winner], asset); err != nil {
			return err
		}
		if err := ac.ClaimAsset(bidders[winner], asset); err != nil {
			return errors.New("couldn't claim asset: " + err.Error())
		}
		if err := ac.Delete(seller); err != nil {
			return errors.New("couldn't delete auction: " + err.Error())
		}

		// Every node has to agree on the outcome.
		for i, si := range config.Roster.List {
			node := service.NewClient(onet.NewRoster([]*network.ServerIdentity{si}))
			balance, err := node.Balance(bidders[winner].Address(), asset)
			if err != nil {
				return err
			}
			if balance != 1 {
				return errors.New("node " + strconv.Itoa(i) + " didn't hand out the asset")
			}
		}
		confirm.Record()
		roundM.Record()
	}
	return nil
}
