package main

import (
	"fmt"
	"os"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"stock-crawler/internal/query"
)

// newGetCommand: чтение колонки сохранённого датасета символа
func newGetCommand(configPath *string) *cobra.Command {
	var (
		symbol string
		column string
		yearly bool
		start  int
		end    int
		index  int
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print typed values of one column for a symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(*configPath, true)
			if err != nil {
				return err
			}
			defer func() { _ = e.logCloser.Close() }()

			r := query.Range{Start: start, End: end}
			if cmd.Flags().Changed("i") {
				r = query.At(index)
			}

			points, err := query.NewReader(e.store, e.normalizer).Get(symbol, column, yearly, r)
			if err != nil {
				return err
			}
			if len(points) == 0 {
				return fmt.Errorf("no data for %s %q", symbol, column)
			}

			tw := prettytable.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.SetStyle(prettytable.StyleLight)
			tw.AppendHeader(prettytable.Row{"Date", column})
			for _, p := range points {
				tw.AppendRow(prettytable.Row{p.Date, p.Value.String()})
			}
			tw.Render()
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&symbol, "symbol", "", "symbol, e.g. AAPL")
	fl.StringVar(&column, "column", "", "column name from mapping.json col2filename")
	fl.BoolVar(&yearly, "yearly", false, "read the yearly statement file")
	fl.IntVar(&start, "start", 0, "first row, 0 = newest date")
	fl.IntVar(&end, "end", 1, "row after the last one")
	fl.IntVar(&index, "i", 0, "single row, overrides --start/--end")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("column")

	return cmd
}
