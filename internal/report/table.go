package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"tyche/internal/domain"
	"tyche/internal/strategy"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	return table
}

// WriteStatement renders one row per open position with its entry, mark and
// open P/L.
func WriteStatement(w io.Writer, positions []domain.Position) {
	table := newTable(w, []string{"Instrument", "Qty", "Entry", "Mark", "Value", "P/L"})
	for _, p := range positions {
		table.Append([]string{
			p.Instrument.Key(),
			strconv.Itoa(p.Quantity),
			FormatPrice(p.EntryPrice),
			FormatPrice(p.CurrentPrice),
			FormatMoney(p.Value()),
			FormatMoney(p.PL()),
		})
	}
	table.Render()
}

// WriteAccount renders an account snapshot as a two-column table.
func WriteAccount(w io.Writer, a domain.AccountInfo) {
	table := newTable(w, []string{"Account", a.Date.Format(time.DateOnly)})
	table.AppendBulk([][]string{
		{"Cash", FormatMoney(a.Cash)},
		{"Net liquid", FormatMoney(a.NetLiquid)},
		{"Positions", FormatMoney(a.PositionValue)},
		{"Option buying power", FormatMoney(a.BuyingPower)},
		{"Cover shares", FormatInt(a.CoverShares)},
		{"Open P/L", FormatMoney(a.OpenPL)},
		{"Closed P/L", FormatMoney(a.ClosedPL)},
		{"High", FormatMoney(a.HighBalance)},
		{"Low", FormatMoney(a.LowBalance)},
	})
	table.Render()
}

// WriteResults renders one row per backtest run.
func WriteResults(w io.Writer, results []*strategy.BacktestResult) {
	table := newTable(w, []string{
		"Symbol", "Strategy", "From", "To", "Net liquid", "Return", "Sharpe",
		"Max DD", "Trades", "Win", "PF", "Rejected", "Assigned",
	})
	for _, r := range results {
		symbol := r.Symbol
		if r.Broke {
			symbol += " (broke)"
		}
		table.Append([]string{
			symbol,
			r.Strategy,
			r.Start.Format(time.DateOnly),
			r.End.Format(time.DateOnly),
			FormatMoney(r.FinalNetLiquid),
			FormatPercent(r.TotalReturn),
			FormatRatio(r.SharpeRatio),
			FormatPercent(-r.MaxDrawdown),
			FormatInt(r.TotalTrades),
			fmt.Sprintf("%.0f%%", r.WinRate*100),
			FormatRatio(r.ProfitFactor),
			FormatInt(r.Rejected),
			FormatInt(r.AssignedShares),
		})
	}
	table.Render()
}
