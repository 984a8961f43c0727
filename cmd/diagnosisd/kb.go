package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yungbote/diagnosis-backend/internal/app"
	"github.com/yungbote/diagnosis-backend/internal/engine"
	"github.com/yungbote/diagnosis-backend/internal/kbseed"
)

var kbFile string

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the knowledge base",
	Long: `Import or check a YAML knowledge base.

Without --file the KB_SEED_FILE variable is used, and without that the
embedded diabetes screening demo.`,
}

var kbImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Upsert a knowledge base file into the database",
	RunE:  runKBImport,
}

var kbValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a knowledge base file without touching the database",
	RunE:  runKBValidate,
}

func init() {
	kbCmd.PersistentFlags().StringVar(&kbFile, "file", "", "knowledge base YAML (default: KB_SEED_FILE or the embedded demo)")
	kbCmd.AddCommand(kbImportCmd, kbValidateCmd)
}

func loadKBFile() (*kbseed.File, error) {
	path := kbFile
	if path == "" {
		path = app.LoadConfig(nil).KBSeedFile
	}
	return kbseed.Load(path)
}

func runKBImport(cmd *cobra.Command, args []string) error {
	f, err := loadKBFile()
	if err != nil {
		return err
	}
	a, err := app.NewCore(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.Services.KBImport.Import(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "imported %d symptoms, %d rules, %d advice\n", sum.Symptoms, sum.Rules, sum.Advice)
	printAnomalies(out, sum.Anomalies)
	return nil
}

func runKBValidate(cmd *cobra.Command, args []string) error {
	f, err := loadKBFile()
	if err != nil {
		return err
	}
	snap, err := f.Snapshot()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ok: %d symptoms, %d rules\n", len(f.Symptoms), len(snap.Rules()))
	printAnomalies(out, snap.Anomalies())
	return nil
}

func printAnomalies(w io.Writer, anomalies []engine.Anomaly) {
	for _, a := range anomalies {
		fmt.Fprintf(w, "warning: %s for %s/%s: candidates %v, using %d\n",
			a.Kind, a.DiagnosisCode, a.RiskLevel, a.Candidates, a.Chosen)
	}
}
