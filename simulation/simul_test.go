package main_test

import (
	"testing"

	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/simul"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func TestSimulation_ByzCoin(t *testing.T) {
	simul.Start("byzcoin_auction.toml")
}

func TestSimulation_Ledger(t *testing.T) {
	simul.Start("ledger_auction.toml")
}
