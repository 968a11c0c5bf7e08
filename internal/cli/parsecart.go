package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
	"github.com/Ananth-NQI/agrobot-backend/internal/nlu"
)

var parseCartJSON bool

var parseCartCmd = &cobra.Command{
	Use:   "parse-cart",
	Short: "Parse a pasted cart from stdin and print its items",
	RunE: func(cmd *cobra.Command, args []string) error {
		return parseCart(cmd.InOrStdin(), cmd.OutOrStdout(), parseCartJSON)
	},
}

func init() {
	parseCartCmd.Flags().BoolVar(&parseCartJSON, "json", false, "print items as JSON")
}

func parseCart(in io.Reader, out io.Writer, asJSON bool) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	items, ok := nlu.ParseCart(string(data))
	if !ok {
		return fmt.Errorf("input is not a cart: expected lines like \"• Glifosato x2 @100 -> 200\"")
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCTO\tCANT.\tPRECIO\tSUBTOTAL")
	for _, it := range items {
		price, sub := "-", "-"
		if it.Price != nil {
			price = strconv.FormatFloat(*it.Price, 'f', 2, 64)
			sub = strconv.FormatFloat(*it.Subtotal(), 'f', 2, 64)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Name, strconv.FormatFloat(it.Qty, 'f', -1, 64), price, sub)
	}
	total, partial := models.QuoteSummary{Items: items}.Total()
	label := "TOTAL"
	if partial {
		label = "TOTAL (parcial)"
	}
	fmt.Fprintf(w, "%s\t\t\t%s\n", label, strconv.FormatFloat(total, 'f', 2, 64))
	return w.Flush()
}
