// Package service exposes a ledger running the registered contracts as an
// onet service. Every node keeps its own ledger; a node receiving a request
// executes it and then replicates it over the roster given in the request.
package service

import (
	"time"

	"github.com/dedis/auction_contracts/chain"
	"github.com/dedis/auction_contracts/ledger"
	lru "github.com/hashicorp/golang-lru"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"

	// Contracts available on the ledger.
	_ "github.com/dedis/auction_contracts/auctions"
	_ "github.com/dedis/auction_contracts/tictactoe"
	_ "github.com/dedis/auction_contracts/voting"
)

// Used for tests
var ledgerServiceID onet.ServiceID

// ReplicateTimeout is how long a node waits for the roster to execute a
// request.
var ReplicateTimeout = 10 * time.Second

const appCacheSize = 128

func init() {
	var err error
	ledgerServiceID, err = onet.RegisterNewService(ServiceName, newService)
	log.ErrFatal(err)
}

// Service holds the ledger of this node.
type Service struct {
	*onet.ServiceProcessor
	ledger *ledger.Ledger
	// apps caches ledger.AppInfo by id.
	apps *lru.Cache
}

// Fund credits an account.
func (s *Service) Fund(req *Fund) (*FundReply, error) {
	if _, err := s.lead(req.Roster, req); err != nil {
		return nil, err
	}
	return &FundReply{}, nil
}

// SetTimestampOffset shifts the ledger clock.
func (s *Service) SetTimestampOffset(req *SetTimestampOffset) (*SetTimestampOffsetReply, error) {
	if _, err := s.lead(req.Roster, req); err != nil {
		return nil, err
	}
	now, err := s.ledger.Now()
	if err != nil {
		return nil, err
	}
	return &SetTimestampOffsetReply{Now: now}, nil
}

// GetApp returns an application.
func (s *Service) GetApp(req *GetApp) (*GetAppReply, error) {
	ai, err := s.app(req.App)
	if err != nil {
		return nil, err
	}
	now, err := s.ledger.Now()
	if err != nil {
		return nil, err
	}
	return &GetAppReply{App: ai, Now: now}, nil
}

// GetGlobalState returns the global state of an application.
func (s *Service) GetGlobalState(req *GetGlobalState) (*GetStateReply, error) {
	kvs, err := s.ledger.GlobalState(req.App)
	if err != nil {
		return nil, err
	}
	return &GetStateReply{Entries: kvs}, nil
}

// GetLocalState returns the local state of an account in an application.
func (s *Service) GetLocalState(req *GetLocalState) (*GetStateReply, error) {
	kvs, err := s.ledger.LocalState(req.App, req.Address)
	if err != nil {
		return nil, err
	}
	return &GetStateReply{Entries: kvs}, nil
}

// GetBalance returns what an account holds of an asset.
func (s *Service) GetBalance(req *GetBalance) (*GetBalanceReply, error) {
	amount, ok, err := s.ledger.Balance(req.Address, req.Asset)
	if err != nil {
		return nil, err
	}
	return &GetBalanceReply{Amount: amount, OptedIn: ok}, nil
}

// CreateAsset creates an asset.
func (s *Service) CreateAsset(req *CreateAsset) (*CreateAssetReply, error) {
	reply, err := s.lead(req.Roster, req)
	if err != nil {
		return nil, err
	}
	return reply.(*CreateAssetReply), nil
}

// OptInAsset opts the signer into an asset.
func (s *Service) OptInAsset(req *OptInAsset) (*OptInAssetReply, error) {
	if _, err := s.lead(req.Roster, req); err != nil {
		return nil, err
	}
	return &OptInAssetReply{}, nil
}

// Pay executes a payment of the signer.
func (s *Service) Pay(req *Pay) (*PayReply, error) {
	if _, err := s.lead(req.Roster, req); err != nil {
		return nil, err
	}
	return &PayReply{}, nil
}

// CreateApp creates an application.
func (s *Service) CreateApp(req *CreateApp) (*CreateAppReply, error) {
	reply, err := s.lead(req.Roster, req)
	if err != nil {
		return nil, err
	}
	return reply.(*CreateAppReply), nil
}

// OptInApp opts the signer into an application.
func (s *Service) OptInApp(req *OptInApp) (*OptInAppReply, error) {
	if _, err := s.lead(req.Roster, req); err != nil {
		return nil, err
	}
	return &OptInAppReply{}, nil
}

// Invoke calls an application method.
func (s *Service) Invoke(req *Invoke) (*InvokeReply, error) {
	reply, err := s.lead(req.Roster, req)
	if err != nil {
		return nil, err
	}
	return reply.(*InvokeReply), nil
}

// DeleteApp deletes an application.
func (s *Service) DeleteApp(req *DeleteApp) (*DeleteAppReply, error) {
	if _, err := s.lead(req.Roster, req); err != nil {
		return nil, err
	}
	return &DeleteAppReply{}, nil
}

// lead executes req on this node and, if it succeeds, on the rest of the
// roster at the same ledger time.
func (s *Service) lead(roster *onet.Roster, req network.Message) (network.Message, error) {
	now, err := s.ledger.Now()
	if err != nil {
		return nil, err
	}
	reply, err := s.execute(s.ledger.At(now), req)
	if err != nil {
		return nil, err
	}
	if roster != nil && len(roster.List) > 1 {
		if err := s.replicate(roster, now, req); err != nil {
			log.Error(s.ServerIdentity(), "replication failed:", err)
		}
	}
	return reply, nil
}

func (s *Service) replicate(roster *onet.Roster, now uint64, req network.Message) error {
	buf, err := network.Marshal(req)
	if err != nil {
		return xerrors.Errorf("encoding request: %v", err)
	}
	tree := roster.GenerateNaryTreeWithRoot(2, s.ServerIdentity())
	if tree == nil {
		return xerrors.New("this node is not in the roster")
	}
	pi, err := s.CreateProtocol(ReplicateProtocol, tree)
	if err != nil {
		return err
	}
	proto := pi.(*ReplicateProto)
	proto.Announce = Announce{Time: now, Request: buf}
	if err := proto.Start(); err != nil {
		return err
	}
	select {
	case count := <-proto.Applied:
		if count < len(roster.List) {
			return xerrors.Errorf("only %d of %d nodes executed the request", count, len(roster.List))
		}
		log.Lvl3("request executed by", count, "nodes")
		return nil
	case <-time.After(ReplicateTimeout):
		return xerrors.New("timeout while replicating")
	}
}

// applyReplicated executes a request another node already executed.
func (s *Service) applyReplicated(now uint64, buf []byte) error {
	_, msg, err := network.Unmarshal(buf, cothority.Suite)
	if err != nil {
		return xerrors.Errorf("decoding request: %v", err)
	}
	_, err = s.execute(s.ledger.At(now), msg)
	return err
}

// execute checks the signature of req, if any, and runs it on l.
func (s *Service) execute(l *ledger.Ledger, req network.Message) (network.Message, error) {
	var signer chain.Address
	if sr, ok := req.(signedRequest); ok {
		var err error
		if signer, err = verify(sr); err != nil {
			return nil, err
		}
	}

	switch r := req.(type) {
	case *Fund:
		return &FundReply{}, l.Fund(r.Address, r.Amount)
	case *SetTimestampOffset:
		return &SetTimestampOffsetReply{}, l.SetTimestampOffset(time.Duration(r.Offset) * time.Second)
	case *CreateAsset:
		id, err := l.CreateAsset(signer, r.Params)
		return &CreateAssetReply{Asset: id}, err
	case *OptInAsset:
		return &OptInAssetReply{}, l.OptInAsset(signer, r.Asset)
	case *Pay:
		return &PayReply{}, l.Pay(chain.Transfer{Sender: signer, Receiver: r.Receiver,
			Asset: r.Asset, Amount: r.Amount})
	case *CreateApp:
		ai, err := l.CreateApp(signer, r.Kind)
		return &CreateAppReply{App: ai}, err
	case *OptInApp:
		return &OptInAppReply{}, l.OptInApp(r.App, signer)
	case *Invoke:
		call := ledger.Call{App: r.App, Sender: signer, Method: r.Method, Args: r.Args, OptIn: r.OptIn}
		if r.Payment != nil {
			ai, err := s.app(r.App)
			if err != nil {
				return nil, err
			}
			call.Companion = &chain.Transfer{Sender: signer, Receiver: ai.Escrow,
				Asset: r.Payment.Asset, Amount: r.Payment.Amount}
		}
		ret, err := l.Call(call)
		return &InvokeReply{Return: ret}, err
	case *DeleteApp:
		s.apps.Remove(r.App)
		return &DeleteAppReply{}, l.DeleteApp(r.App, signer)
	default:
		return nil, xerrors.Errorf("cannot execute %T", req)
	}
}

func (s *Service) app(id uint64) (ledger.AppInfo, error) {
	if v, ok := s.apps.Get(id); ok {
		return v.(ledger.AppInfo), nil
	}
	ai, err := s.ledger.App(id)
	if err != nil {
		return ledger.AppInfo{}, err
	}
	s.apps.Add(id, ai)
	return ai, nil
}

// newService receives the context that holds information about the node
// it's running on. The ledger is stored in an additional bucket of the
// node's database: in memory for tests and simulations, on disk for real
// deployments.
func newService(c *onet.Context) (onet.Service, error) {
	db, bucket := c.GetAdditionalBucket([]byte("ledger"))
	l, err := ledger.New(db, bucket)
	if err != nil {
		return nil, err
	}
	apps, err := lru.New(appCacheSize)
	if err != nil {
		return nil, err
	}
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
		ledger:           l,
		apps:             apps,
	}
	if err := s.RegisterHandlers(s.Fund, s.SetTimestampOffset,
		s.GetApp, s.GetGlobalState, s.GetLocalState, s.GetBalance,
		s.CreateAsset, s.OptInAsset, s.Pay,
		s.CreateApp, s.OptInApp, s.Invoke, s.DeleteApp); err != nil {
		return nil, err
	}
	_, err = s.ProtocolRegister(ReplicateProtocol, func(n *onet.TreeNodeInstance) (onet.ProtocolInstance, error) {
		return newReplicateProto(n, s.applyReplicated)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
