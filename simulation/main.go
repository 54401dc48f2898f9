// Command simulation measures auctions run as byzcoin instances and on the
// replicated ledger service.
package main

import "go.dedis.ch/onet/v3/simul"

func main() {
	simul.Start()
}
