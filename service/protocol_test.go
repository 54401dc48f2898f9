package service

import (
	"testing"
	"time"

	"github.com/dedis/auction_contracts/chain"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
)

// Tests a 2, 5 and 13-node system. The root already executed the request
// and leaves it alone.
func TestReplicateProto(t *testing.T) {
	for _, nbrNodes := range []int{2, 5, 13} {
		local := onet.NewLocalTest(tSuite)
		hosts, _, tree := local.GenTree(nbrNodes, true)
		log.Lvl3(tree.Dump())

		buf, err := network.Marshal(&Fund{Address: "alice", Amount: 7})
		require.NoError(t, err)
		pi, err := local.CreateProtocol(ReplicateProtocol, tree)
		require.NoError(t, err)
		protocol := pi.(*ReplicateProto)
		protocol.Announce = Announce{Time: 1234, Request: buf}
		require.NoError(t, protocol.Start())

		timeout := network.WaitRetry * time.Duration(network.MaxRetryConnect*nbrNodes*2) * time.Millisecond
		select {
		case count := <-protocol.Applied:
			require.Equal(t, nbrNodes, count)
		case <-time.After(timeout):
			t.Fatal("Didn't finish in time")
		}

		for i, s := range local.GetServices(hosts, ledgerServiceID) {
			reply, err := s.(*Service).GetBalance(&GetBalance{Address: "alice", Asset: chain.NativeAsset})
			require.NoError(t, err)
			if i == 0 {
				require.Equal(t, uint64(0), reply.Amount)
			} else {
				require.Equal(t, uint64(7), reply.Amount)
			}
		}
		local.CloseAll()
	}
}
