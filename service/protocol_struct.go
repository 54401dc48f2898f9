package service

import (
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/network"
)

// ReplicateProtocol can be used from other packages to refer to the
// protocol that spreads ledger requests over the roster.
const ReplicateProtocol = "LedgerReplicate"

func init() {
	network.RegisterMessages(Announce{}, Applied{})
}

// Announce carries a request the root node already executed to the rest of
// the tree.
type Announce struct {
	// Time is the ledger time the root executed the request at.
	Time uint64
	// Request is the network-encoded request.
	Request []byte
}

// StructAnnounce just contains Announce and the data necessary to identify
// and process the message in the onet framework.
type StructAnnounce struct {
	*onet.TreeNode
	Announce
}

// Applied returns the number of nodes in a subtree that executed the
// request.
type Applied struct {
	Count int
}

// StructApplied just contains Applied and the data necessary to identify
// and process the message in the onet framework.
type StructApplied struct {
	*onet.TreeNode
	Applied
}
