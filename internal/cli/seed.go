package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/meshpay/creditledger/internal/config"
	"github.com/meshpay/creditledger/internal/domain"
	"github.com/meshpay/creditledger/internal/ledger"
	"github.com/meshpay/creditledger/internal/observability"
	"github.com/meshpay/creditledger/internal/repository"
	"github.com/meshpay/creditledger/internal/scoring"
)

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringP("file", "f", "", "Path to a seed corpus (defaults to testdata/events.json)")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample payment corpus into the ledger",
	Long: `Report every event from the seed corpus through the full ledger
pipeline, then print the resulting credit scores. Events already in the
ledger are skipped, so seeding is safe to repeat.`,
	RunE: runSeed,
}

// seedEvent mirrors the report-payment request body, plus the reporter
// that would normally arrive in the X-Agent-Wallet header.
type seedEvent struct {
	PayerWallet    string          `json:"payer_wallet"`
	PayeeWallet    string          `json:"payee_wallet"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	DueDate        time.Time       `json:"due_date"`
	PaymentDate    *time.Time      `json:"payment_date,omitempty"`
	Status         string          `json:"status"`
	ReporterWallet string          `json:"reporter_wallet"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Keep the ledger's per-event info logs out of the seed report.
	observability.SetupLogging("creditledger", cfg.Server.Environment, "warn", "text")

	db, err := repository.InitDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	agents := repository.NewAgentRepo(db)
	events := repository.NewEventRepo(db)
	svc := ledger.NewService(agents, events, scoring.NewEngine(scoringParams(cfg.Scoring)))

	seedFile, _ := cmd.Flags().GetString("file")
	data, path, err := loadSeedCorpus(seedFile)
	if err != nil {
		return err
	}

	var records []seedEvent
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("unmarshal seed corpus: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Seeding %d payment events from %s\n", len(records), path)

	recorded, skipped := 0, 0
	for _, rec := range records {
		status, err := domain.ParsePaymentStatus(rec.Status)
		if err != nil {
			return fmt.Errorf("seed corpus: %w", err)
		}
		receipt, err := svc.ReportPayment(ledger.ReportInput{
			PayerWallet:    rec.PayerWallet,
			PayeeWallet:    rec.PayeeWallet,
			Amount:         rec.Amount,
			Currency:       rec.Currency,
			DueDate:        rec.DueDate,
			PaymentDate:    rec.PaymentDate,
			Status:         status,
			ReporterWallet: rec.ReporterWallet,
		})
		switch {
		case err == nil:
			recorded++
			fmt.Fprintf(os.Stdout, "  recorded %s  %s -> %s  $%s %-9s  payer score %d\n",
				receipt.Event.EventID, shortWallet(rec.PayerWallet), shortWallet(rec.PayeeWallet),
				rec.Amount.String(), rec.Status, receipt.PayerScore)
		case errors.Is(err, domain.ErrDuplicateEvent):
			skipped++
		default:
			return fmt.Errorf("report payment: %w", err)
		}
	}

	fmt.Fprintf(os.Stdout, "\nSeeded %d events (%d duplicates skipped)\n", recorded, skipped)

	list, err := agents.List()
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	fmt.Fprintln(os.Stdout, "\nCredit scores:")
	for _, a := range list {
		fmt.Fprintf(os.Stdout, "  %s  score %3d  made %2d  received %2d\n",
			a.WalletAddress, a.CreditScore, a.TotalPaymentsMade, a.TotalPaymentsReceived)
	}
	return nil
}

// loadSeedCorpus reads the corpus from the given path, or tries the usual
// testdata locations relative to the working directory and the executable.
func loadSeedCorpus(path string) ([]byte, string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("read seed corpus: %w", err)
		}
		return data, path, nil
	}

	candidates := []string{
		filepath.Join("testdata", "events.json"),
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "testdata", "events.json"),
			filepath.Join(dir, "..", "..", "testdata", "events.json"),
		)
	}

	var lastErr error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err == nil {
			return data, candidate, nil
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("could not find events.json in any candidate path: %w", lastErr)
}

func shortWallet(wallet string) string {
	if len(wallet) <= 10 {
		return wallet
	}
	return wallet[:10] + "..."
}
