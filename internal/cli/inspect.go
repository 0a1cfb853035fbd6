package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshpay/creditledger/internal/config"
	"github.com/meshpay/creditledger/internal/domain"
	"github.com/meshpay/creditledger/internal/observability"
	"github.com/meshpay/creditledger/internal/repository"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("agent", "", "Show detail for a single agent wallet")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print ledger contents and score statistics",
	Long: `Print every agent with its credit score and payment counters, plus
ledger totals by payment status. With --agent, print one agent's record
and its payment events on both sides.`,
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	observability.SetupLogging("creditledger", cfg.Server.Environment, "warn", "text")

	db, err := repository.InitDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	agents := repository.NewAgentRepo(db)
	events := repository.NewEventRepo(db)

	if wallet, _ := cmd.Flags().GetString("agent"); wallet != "" {
		return inspectAgent(agents, events, wallet)
	}

	list, err := agents.List()
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Agents: %d\n", len(list))
	for _, a := range list {
		fmt.Fprintf(os.Stdout, "  %s  score %3d  made %2d  received %2d\n",
			a.WalletAddress, a.CreditScore, a.TotalPaymentsMade, a.TotalPaymentsReceived)
	}

	total, err := events.Count()
	if err != nil {
		return fmt.Errorf("count events: %w", err)
	}
	byStatus, err := events.CountByStatus()
	if err != nil {
		return fmt.Errorf("count events by status: %w", err)
	}

	fmt.Fprintf(os.Stdout, "\nPayment events: %d\n", total)
	for _, status := range []string{"on_time", "late", "defaulted"} {
		if n := byStatus[status]; n > 0 {
			fmt.Fprintf(os.Stdout, "  %-9s %d\n", status, n)
		}
	}

	if len(list) > 0 {
		minScore, maxScore, sum := list[0].CreditScore, list[0].CreditScore, 0
		for _, a := range list {
			sum += a.CreditScore
			if a.CreditScore < minScore {
				minScore = a.CreditScore
			}
			if a.CreditScore > maxScore {
				maxScore = a.CreditScore
			}
		}
		fmt.Fprintf(os.Stdout, "\nScores: avg %.2f  min %d  max %d\n",
			float64(sum)/float64(len(list)), minScore, maxScore)
	}
	return nil
}

func inspectAgent(agents *repository.AgentRepo, events *repository.EventRepo, wallet string) error {
	if err := domain.ValidateWallet("agent", wallet); err != nil {
		return fmt.Errorf("invalid wallet address %q: %w", wallet, err)
	}
	normalized := domain.NormalizeWallet(wallet)

	agent, err := agents.Get(normalized)
	if err != nil {
		if errors.Is(err, domain.ErrAgentNotFound) {
			fmt.Fprintf(os.Stdout, "Agent not found: %s\n", normalized)
			return nil
		}
		return fmt.Errorf("get agent: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Wallet:            %s\n", agent.WalletAddress)
	fmt.Fprintf(os.Stdout, "Credit score:      %d\n", agent.CreditScore)
	fmt.Fprintf(os.Stdout, "Payments made:     %d\n", agent.TotalPaymentsMade)
	fmt.Fprintf(os.Stdout, "Payments received: %d\n", agent.TotalPaymentsReceived)
	fmt.Fprintf(os.Stdout, "Created:           %s\n", agent.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(os.Stdout, "Last updated:      %s\n", agent.LastUpdated.Format(time.RFC3339))

	asPayer, _, err := events.List(repository.EventFilter{
		Wallet: normalized, Role: domain.RolePayer, PageSize: 200,
	})
	if err != nil {
		return fmt.Errorf("list payer events: %w", err)
	}
	fmt.Fprintf(os.Stdout, "\nAs payer (%d):\n", len(asPayer))
	for _, e := range asPayer {
		fmt.Fprintf(os.Stdout, "  %-9s $%s to %s\n", e.Status, e.Amount.String(), shortWallet(e.PayeeWallet))
	}

	asPayee, _, err := events.List(repository.EventFilter{
		Wallet: normalized, Role: domain.RolePayee, PageSize: 200,
	})
	if err != nil {
		return fmt.Errorf("list payee events: %w", err)
	}
	fmt.Fprintf(os.Stdout, "\nAs payee (%d):\n", len(asPayee))
	for _, e := range asPayee {
		fmt.Fprintf(os.Stdout, "  %-9s $%s from %s\n", e.Status, e.Amount.String(), shortWallet(e.PayerWallet))
	}
	return nil
}
