package main

import (
	"fmt"
	"time"

	"contango-scanner/internal/contango"
	"contango-scanner/internal/venue"
)

// splitPct is where the table breaks between headline and tail rows.
const splitPct = 1.0

// render prints the ranked rows as a table, with rows at or above 1%
// separated from the rest.
func render(rows []contango.Row, top int, clear bool) {
	if clear {
		fmt.Print("\033[2J\033[H")
	}
	fmt.Printf("%s  opportunities: %d\n", time.Now().Format("15:04:05"), len(rows))
	if len(rows) == 0 {
		return
	}
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}

	fmt.Printf("%-4s %-10s %-14s %12s %12s %8s %8s %8s %8s %9s\n",
		"#", "base", "route", "spot$", "fut$", "pct", "net0", "net-.2", "net-.4", "funding%")

	split := false
	for i, row := range rows {
		if !split && row.Pct < splitPct {
			if i > 0 {
				fmt.Println("  ---- below 1% ----")
			}
			split = true
		}
		fmt.Printf("%-4d %-10s %-14s %12.4f %12.4f %8.3f %8.3f %8.3f %8.3f %9.4f\n",
			i+1,
			row.Base,
			routeLabel(row),
			row.SpotPriceUSD,
			row.FuturesPriceUSD,
			row.Pct,
			row.NetPct,
			row.NetPctBufLow,
			row.NetPctBufHigh,
			row.FundingRate*100,
		)
	}
}

func routeLabel(row contango.Row) string {
	spot, _ := venue.Lookup(row.SpotVenue)
	fut, _ := venue.Lookup(row.FuturesVenue)
	return spot.Label + ">" + fut.Label
}
