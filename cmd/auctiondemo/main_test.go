package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/dedis/auction_contracts/ledger"
	"github.com/dedis/auction_contracts/service"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

var testParams = params{price: 1000000, length: 3600, funds: 10000000}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "1.500000 units", native(1500000))
	require.Equal(t, "0.000001 units", native(1))
	require.Equal(t, "42 lots", formatAmount(42, 0, "lots"))
}

func TestLocalDemo(t *testing.T) {
	dir, err := ioutil.TempDir("", "auctiondemo")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	l, err := ledger.Open(filepath.Join(dir, "demo.db"))
	require.NoError(t, err)
	defer l.Close()
	first, second := testParams.bids()
	d := &localDemo{l: l, params: testParams}
	require.NoError(t, d.run())
	require.Equal(t, first, d.refund)
	require.Equal(t, second, d.earned)
	// A second run on the same file starts from where the first left.
	d = &localDemo{l: l, params: testParams}
	require.NoError(t, d.run())
	require.Equal(t, first, d.refund)
}

func TestRemoteDemo(t *testing.T) {
	local := onet.NewTCPTest(suites.MustFind("Ed25519"))
	_, roster, _ := local.GenTree(3, true)
	defer local.CloseAll()

	cl := service.NewClient(roster)
	require.NoError(t, runRemote(cl, testParams))
	require.NoError(t, runRemote(cl, testParams))
}
