package main

import (
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli"
)

var (
	dbFlag = cli.StringFlag{
		Name:  "db",
		Value: "auctiondemo.db",
		Usage: "ledger file, created if missing",
	}
	groupFlag = cli.StringFlag{
		Name:  "group, g",
		Value: "public.toml",
		Usage: "onet group file of the roster",
	}
	auctionFlags = []cli.Flag{
		cli.Uint64Flag{
			Name:  "price",
			Value: 1000000,
			Usage: "starting price in micro-units",
		},
		cli.Uint64Flag{
			Name:  "length",
			Value: 3600,
			Usage: "auction length in seconds",
		},
		cli.Uint64Flag{
			Name:  "funds",
			Value: 100000000,
			Usage: "what each bidder gets from the faucet, in micro-units",
		},
	}
)

// nativeDecimals is the precision of the native currency.
const nativeDecimals = 6

type params struct {
	price  uint64
	length uint64
	funds  uint64
}

func readParams(c *cli.Context) params {
	return params{
		price:  c.Uint64("price"),
		length: c.Uint64("length"),
		funds:  c.Uint64("funds"),
	}
}

// bids returns the bids of the first and the second bidder.
func (p params) bids() (uint64, uint64) {
	return p.price + p.price/10, 2 * p.price
}

// formatAmount shows an amount of indivisible units with its decimals.
func formatAmount(amount uint64, decimals int32, unit string) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals)
	return d.StringFixed(decimals) + " " + unit
}

func native(amount uint64) string {
	return formatAmount(amount, nativeDecimals, "units")
}
