// Command auctiondemo walks through the life of an auction: an asset is
// created and auctioned, two bidders outbid each other, the loser takes
// its bid back, the winner claims the asset and the seller deletes the
// auction to get paid.
//
// The walk-through runs either on a ledger file of its own or on the
// ledger service of a roster.
package main

import (
	"os"

	"github.com/urfave/cli"
	"go.dedis.ch/onet/v3/log"
)

func main() {
	app := cli.NewApp()
	app.Name = "auctiondemo"
	app.Usage = "run an auction from start to settlement"
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
	}
	app.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "local",
			Usage:     "run the auction on a ledger stored in a file",
			ArgsUsage: "",
			Flags:     append([]cli.Flag{dbFlag}, auctionFlags...),
			Action:    localAction,
		},
		{
			Name:   "remote",
			Usage:  "run the auction on the ledger service of a roster",
			Flags:  append([]cli.Flag{groupFlag}, auctionFlags...),
			Action: remoteAction,
		},
	}
	log.ErrFatal(app.Run(os.Args))
}
