package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mmynk/feeallocator/internal/models"
	"github.com/mmynk/feeallocator/internal/storage/backend"
)

var seedFile string

// seedCmd loads students into the configured store.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load students from a YAML file",
	Long: `Create or overwrite students in the configured store.

The file lists students under a top-level "students" key:

  students:
    - admission_no: "041"
      name: Amina Otieno
      class: Grade 4 East
      balance: 10000

Example:
  feectl seed --file students.yaml`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML file with students")
	_ = seedCmd.MarkFlagRequired("file")
}

type seedDocument struct {
	Students []*models.Student `yaml:"students"`
}

// readSeedFile parses a seed document and rejects rows without an admission number.
// A missing status is derived from the balance.
func readSeedFile(path string) ([]*models.Student, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	seen := make(map[string]bool, len(doc.Students))
	for i, st := range doc.Students {
		if st == nil || st.AdmissionNo == "" {
			return nil, fmt.Errorf("student %d has no admission_no", i+1)
		}
		if seen[st.AdmissionNo] {
			return nil, fmt.Errorf("admission_no %s listed twice", st.AdmissionNo)
		}
		seen[st.AdmissionNo] = true
		if st.Status == "" {
			st.Status = models.StatusForBalance(st.Balance)
		}
	}
	return doc.Students, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	students, err := readSeedFile(seedFile)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := backend.Open(cfg.Store, true)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	for _, st := range students {
		if err := store.UpsertStudent(cmd.Context(), st); err != nil {
			return fmt.Errorf("failed to seed %s: %w", st.AdmissionNo, err)
		}
	}

	printf(cmd, "Seeded %d students\n", len(students))
	return nil
}
