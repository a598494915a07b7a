package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/extraction"
)

const seedDateLayout = "2006-01-02"

// seedFile is the YAML layout accepted by the seed command.
type seedFile struct {
	Invoices []seedInvoice `yaml:"invoices"`
}

type seedInvoice struct {
	ID              string   `yaml:"id"`
	RUT             string   `yaml:"rut"`
	CustomerName    string   `yaml:"customer_name"`
	Address         string   `yaml:"address"`
	Period          string   `yaml:"period"`
	IssueDate       string   `yaml:"issue_date"`
	DueDate         string   `yaml:"due_date"`
	Consumption     float64  `yaml:"consumption"`
	Amount          int64    `yaml:"amount"`
	PreviousReading *float64 `yaml:"previous_reading"`
	CurrentReading  *float64 `yaml:"current_reading"`
	Status          string   `yaml:"status"`
	Notes           string   `yaml:"notes"`
}

func (s seedInvoice) toInvoice(now time.Time) (entities.Invoice, error) {
	rut, ok := extraction.FindRUT(s.RUT)
	if !ok {
		return entities.Invoice{}, fmt.Errorf("invalid rut %q", s.RUT)
	}
	if _, err := time.Parse("2006-01", s.Period); err != nil {
		return entities.Invoice{}, fmt.Errorf("invalid period %q for %s", s.Period, rut)
	}

	inv := entities.Invoice{
		ID:              s.ID,
		RUT:             rut,
		CustomerName:    strings.TrimSpace(s.CustomerName),
		Address:         s.Address,
		Period:          s.Period,
		Consumption:     s.Consumption,
		Amount:          s.Amount,
		PreviousReading: s.PreviousReading,
		CurrentReading:  s.CurrentReading,
		Status:          entities.PaymentStatus(strings.ToLower(s.Status)),
		Notes:           s.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = entities.PaymentPending
	}
	switch inv.Status {
	case entities.PaymentPending, entities.PaymentPaid, entities.PaymentOverdue, entities.PaymentCancelled:
	default:
		return entities.Invoice{}, fmt.Errorf("invalid status %q for %s", s.Status, rut)
	}

	if s.IssueDate != "" {
		d, err := time.Parse(seedDateLayout, s.IssueDate)
		if err != nil {
			return entities.Invoice{}, fmt.Errorf("invalid issue_date %q for %s", s.IssueDate, rut)
		}
		inv.IssueDate = d
	}
	if s.DueDate != "" {
		d, err := time.Parse(seedDateLayout, s.DueDate)
		if err != nil {
			return entities.Invoice{}, fmt.Errorf("invalid due_date %q for %s", s.DueDate, rut)
		}
		inv.DueDate = &d
	}
	return inv, nil
}

// readSeed decodes and validates a seed file.
func readSeed(r io.Reader, now time.Time) ([]entities.Invoice, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding seed file: %w", err)
	}
	out := make([]entities.Invoice, 0, len(f.Invoices))
	for i, s := range f.Invoices {
		inv, err := s.toInvoice(now)
		if err != nil {
			return nil, fmt.Errorf("invoice %d: %w", i+1, err)
		}
		out = append(out, inv)
	}
	return out, nil
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load invoices from a YAML file",
	Long: `Load invoices into the record store. An invoice with the same RUT and
period as an existing one replaces it.

Example file:

  invoices:
    - rut: 12.345.678-9
      customer_name: María González
      period: 2025-02
      issue_date: 2025-02-25
      due_date: 2025-03-11
      consumption: 20
      amount: 18500
      status: pendiente`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		invoices, err := readSeed(f, time.Now())
		if err != nil {
			return err
		}
		for i := range invoices {
			if err := App.Invoices.Save(cmd.Context(), &invoices[i]); err != nil {
				return fmt.Errorf("saving invoice %s %s: %w", invoices[i].RUT, invoices[i].Period, err)
			}
		}
		fmt.Fprintf(out, "Seeded %d invoices\n", len(invoices))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
