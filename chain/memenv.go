package chain

// MemEnv is an Env keeping everything in memory. Payments out of the escrow
// are only recorded in Paid. Contracts are tested against it.
type MemEnv struct {
	Caller  Address
	Owner   Address
	Time    uint64
	Escrow  Address
	Store   *MemStore
	Locals  map[Address]*MemStore
	Paid    map[Address]map[AssetID]uint64
	OptedIn []AssetID
}

// NewMemEnv returns an environment of an application created by creator,
// with creator as caller.
func NewMemEnv(creator, escrow Address) *MemEnv {
	return &MemEnv{
		Caller: creator,
		Owner:  creator,
		Escrow: escrow,
		Store:  NewMemStore(),
		Locals: make(map[Address]*MemStore),
		Paid:   make(map[Address]map[AssetID]uint64),
	}
}

// OptInAccount gives addr local state.
func (e *MemEnv) OptInAccount(addr Address) {
	if _, ok := e.Locals[addr]; !ok {
		e.Locals[addr] = NewMemStore()
	}
}

// Sender implements Env.
func (e *MemEnv) Sender() Address { return e.Caller }

// Creator implements Env.
func (e *MemEnv) Creator() Address { return e.Owner }

// Now implements Env.
func (e *MemEnv) Now() uint64 { return e.Time }

// Address implements Env.
func (e *MemEnv) Address() Address { return e.Escrow }

// Global implements Env.
func (e *MemEnv) Global() Store { return e.Store }

// Local implements Env.
func (e *MemEnv) Local(addr Address) (Store, error) {
	st, ok := e.Locals[addr]
	if !ok {
		return nil, ErrNotOptedIn
	}
	return st, nil
}

// Send implements Env.
func (e *MemEnv) Send(to Address, asset AssetID, amount uint64) error {
	if e.Paid[to] == nil {
		e.Paid[to] = make(map[AssetID]uint64)
	}
	e.Paid[to][asset] += amount
	return nil
}

// OptInAsset implements Env.
func (e *MemEnv) OptInAsset(asset AssetID) error {
	e.OptedIn = append(e.OptedIn, asset)
	return nil
}
