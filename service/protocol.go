package service

import (
	"errors"

	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
)

// applyFunc executes a network-encoded request at the given ledger time.
type applyFunc func(time uint64, request []byte) error

// ReplicateProto sends a request down the tree. Every node but the root
// executes it on its own ledger, and the number of nodes that did is
// summed up on the way back.
type ReplicateProto struct {
	*onet.TreeNodeInstance
	// Announce has to be set on the root before Start.
	Announce Announce
	// Applied receives the count on the root, the root included.
	Applied chan int

	apply applyFunc
}

var _ onet.ProtocolInstance = (*ReplicateProto)(nil)

func newReplicateProto(n *onet.TreeNodeInstance, apply applyFunc) (*ReplicateProto, error) {
	p := &ReplicateProto{
		TreeNodeInstance: n,
		Applied:          make(chan int, 1),
		apply:            apply,
	}
	for _, handler := range []interface{}{p.HandleAnnounce, p.HandleApplied} {
		if err := p.RegisterHandler(handler); err != nil {
			return nil, errors.New("couldn't register handler: " + err.Error())
		}
	}
	return p, nil
}

// Start sends the announce to all children.
func (p *ReplicateProto) Start() error {
	if p.Announce.Request == nil {
		p.Done()
		return errors.New("nothing to replicate")
	}
	log.Lvl3("Starting ReplicateProto")
	return p.HandleAnnounce(StructAnnounce{p.TreeNode(), p.Announce})
}

// HandleAnnounce executes the request and passes it on.
func (p *ReplicateProto) HandleAnnounce(msg StructAnnounce) error {
	p.Announce = msg.Announce
	if !p.IsLeaf() {
		if err := p.SendToChildren(&msg.Announce); err != nil {
			log.Error(p.ServerIdentity(), "couldn't reach all children:", err)
		}
		return nil
	}
	return p.HandleApplied(nil)
}

// HandleApplied waits for all children and sends the count up.
func (p *ReplicateProto) HandleApplied(replies []StructApplied) error {
	defer p.Done()

	count := 0
	if p.IsRoot() {
		count = 1
	} else if err := p.apply(p.Announce.Time, p.Announce.Request); err != nil {
		log.Error(p.ServerIdentity(), "failed to replicate:", err)
	} else {
		count = 1
	}
	for _, r := range replies {
		count += r.Count
	}
	log.Lvl3(p.ServerIdentity().Address, "is done with a total of", count)

	if !p.IsRoot() {
		return p.SendTo(p.Parent(), &Applied{count})
	}
	p.Applied <- count
	return nil
}
