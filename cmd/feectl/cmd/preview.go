package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/feeallocator/internal/service"
	"github.com/mmynk/feeallocator/internal/storage/backend"
)

var (
	previewAmount    int64
	previewReference string
)

// previewCmd shows how a payment would be allocated against the current ledger.
var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show how a payment would be allocated",
	Long: `Run the allocation against the configured store without recording anything.

Example:
  feectl preview --amount 20000 --reference "041|1043"`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().Int64Var(&previewAmount, "amount", 0, "payment amount in whole currency units")
	previewCmd.Flags().StringVar(&previewReference, "reference", "", "account reference, e.g. 041|1043")
	_ = previewCmd.MarkFlagRequired("amount")
	_ = previewCmd.MarkFlagRequired("reference")
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := backend.Open(cfg.Store, false)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	svc := service.NewPaymentService(store, cfg.Term, cfg.CreditPolicy, nil)
	p, err := svc.Preview(cmd.Context(), previewAmount, previewReference)
	if err != nil {
		return err
	}

	printf(cmd, "Reference: %s\n", p.ReferenceJoined())
	printf(cmd, "\n%-14s %12s\n", "Admission No", "Allocated")
	for _, a := range p.Allocations {
		printf(cmd, "%-14s %12d\n", a.AdmissionNo, a.Amount)
	}
	if len(p.Credits) > 0 {
		printf(cmd, "\n%-14s %12s\n", "Admission No", "Credit")
		for _, c := range p.Credits {
			printf(cmd, "%-14s %12d\n", c.AdmissionNo, c.Amount)
		}
	}
	printf(cmd, "\nRemaining credit: %d\n", p.RemainingCredit)
	if p.UnassignedCredit > 0 {
		printf(cmd, "Unassigned:       %d\n", p.UnassignedCredit)
	}
	return nil
}
