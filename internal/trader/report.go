package trader

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/quantfisher/ashare-trader/internal/types"
)

// RenderReport writes an end-of-run account summary: headline P&L figures
// plus position, entrust and deal tables.
func RenderReport(w io.Writer, acct *types.Account) {
	fmt.Fprintf(w, "\n=== ACCOUNT %s (%s) ===\n", acct.AccountID, acct.Type)
	fmt.Fprintf(w, "Cash init:       %s\n", acct.CashInit.StringFixed(2))
	fmt.Fprintf(w, "Cash available:  %s\n", acct.CashAvailable.StringFixed(2))
	fmt.Fprintf(w, "Cash frozen:     %s\n", acct.CashFrozen.StringFixed(2))
	fmt.Fprintf(w, "Hold value:      %s\n", acct.TotalHoldValue.StringFixed(2))
	fmt.Fprintf(w, "Net value:       %s\n", acct.TotalNetValue.StringFixed(2))
	fmt.Fprintf(w, "Close profit:    %s\n", acct.CloseProfit.StringFixed(2))
	fmt.Fprintf(w, "Total profit:    %s (%s%%)\n",
		acct.TotalProfit.StringFixed(2), acct.TotalProfitRate.StringFixed(2))

	if len(acct.Position) > 0 {
		fmt.Fprintln(w, "\nPositions:")
		table := tablewriter.NewWriter(w)
		table.Header("Code", "Name", "Volume", "Avail", "Price", "Now", "Profit", "Rate%")
		for _, pos := range acct.Position {
			table.Append(
				pos.Code,
				pos.Name,
				fmt.Sprintf("%d", pos.Volume),
				fmt.Sprintf("%d", pos.VolumeAvailable),
				pos.Price.StringFixed(3),
				pos.NowPrice.StringFixed(3),
				pos.Profit.StringFixed(2),
				pos.ProfitRate.StringFixed(4),
			)
		}
		table.Render()
	}

	if len(acct.Entrust) > 0 {
		fmt.Fprintln(w, "\nEntrusts:")
		table := tablewriter.NewWriter(w)
		table.Header("ID", "Code", "Type", "Status", "Price", "Volume", "Dealt", "Cancelled")
		for _, e := range acct.Entrust {
			table.Append(
				shortID(e.EntrustID),
				e.Code,
				string(e.EntrustType),
				string(e.Status),
				e.Price.StringFixed(3),
				fmt.Sprintf("%d", e.Volume),
				fmt.Sprintf("%d", e.VolumeDeal),
				fmt.Sprintf("%d", e.VolumeCancel),
			)
		}
		table.Render()
	}

	if len(acct.Deal) > 0 {
		fmt.Fprintln(w, "\nDeals:")
		table := tablewriter.NewWriter(w)
		table.Header("ID", "Code", "Type", "Price", "Volume", "Fee", "Profit")
		for _, d := range acct.Deal {
			table.Append(
				shortID(d.DealID),
				d.Code,
				string(d.DealType),
				d.Price.StringFixed(3),
				fmt.Sprintf("%d", d.Volume),
				d.Fee.StringFixed(2),
				d.Profit.StringFixed(2),
			)
		}
		table.Render()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
