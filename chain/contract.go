package chain

import (
	"sort"
	"sync"

	"golang.org/x/xerrors"
)

// Contract is the code of an application kind. The host calls it with an
// Env bound to one application instance; a returned error aborts the call
// and nothing of it is kept.
type Contract interface {
	// Create runs when the application is created.
	Create(env Env) error
	// OptIn runs when the sender registers local state.
	OptIn(env Env) error
	// Invoke runs a method. companion is nil if no transfer was bundled.
	Invoke(env Env, method string, args Arguments, companion *Transfer) ([]byte, error)
	// Delete runs right before the application storage is dropped.
	Delete(env Env) error
}

// ContractFn returns the contract for an application kind.
type ContractFn func() Contract

var registry = struct {
	sync.RWMutex
	contracts map[string]ContractFn
}{contracts: make(map[string]ContractFn)}

// RegisterContract makes an application kind available to every host in
// this process. It is meant to be called from init.
func RegisterContract(kind string, fn ContractFn) error {
	registry.Lock()
	defer registry.Unlock()
	if _, exists := registry.contracts[kind]; exists {
		return xerrors.Errorf("contract %q already registered", kind)
	}
	registry.contracts[kind] = fn
	return nil
}

// SearchContract returns the constructor of an application kind.
func SearchContract(kind string) (ContractFn, bool) {
	registry.RLock()
	defer registry.RUnlock()
	fn, ok := registry.contracts[kind]
	return fn, ok
}

// Kinds lists the registered application kinds.
func Kinds() []string {
	registry.RLock()
	defer registry.RUnlock()
	kinds := make([]string, 0, len(registry.contracts))
	for k := range registry.contracts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
