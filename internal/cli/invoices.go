package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/coopchat-go/internal/domain/dialogue"
	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/extraction"
)

var (
	invoicesName string
	invoicesRUT  string
)

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Look up invoices by customer name or RUT",
	Long: `List invoices, most recent first. --name matches part of the customer
name ignoring case and accents, so "maria gonzalez" finds "María González".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var invoices []entities.Invoice
		switch {
		case invoicesRUT != "":
			rut, ok := extraction.FindRUT(invoicesRUT)
			if !ok {
				return fmt.Errorf("invalid rut %q", invoicesRUT)
			}
			res, err := App.Invoices.FindByKey(cmd.Context(), rut)
			if err != nil {
				return err
			}
			invoices = res.Invoices
		case invoicesName != "":
			found, err := App.Invoices.FindByName(cmd.Context(), invoicesName)
			if err != nil {
				return err
			}
			invoices = found
		default:
			return errors.New("one of --name or --rut is required")
		}

		if len(invoices) == 0 {
			fmt.Fprintln(out, "No invoices found")
			return nil
		}
		for _, inv := range invoices {
			fmt.Fprintf(out, "%s  %-11s  %-24s  %10s  %s\n",
				inv.Period, inv.RUT, inv.CustomerName, dialogue.FormatCLP(inv.Amount), inv.Status)
		}
		return nil
	},
}

func init() {
	invoicesCmd.Flags().StringVar(&invoicesName, "name", "", "customer name or part of it")
	invoicesCmd.Flags().StringVar(&invoicesRUT, "rut", "", "customer RUT")
	invoicesCmd.MarkFlagsMutuallyExclusive("name", "rut")
	rootCmd.AddCommand(invoicesCmd)
}
