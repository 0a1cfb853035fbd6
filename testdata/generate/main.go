package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// event mirrors the report-payment request body, plus the reporter that
// would normally arrive in the X-Agent-Wallet header.
type event struct {
	PayerWallet    string  `json:"payer_wallet"`
	PayeeWallet    string  `json:"payee_wallet"`
	Amount         string  `json:"amount"`
	Currency       string  `json:"currency"`
	DueDate        string  `json:"due_date"`
	PaymentDate    *string `json:"payment_date,omitempty"`
	Status         string  `json:"status"`
	ReporterWallet string  `json:"reporter_wallet"`
}

var wallets = map[string]string{
	"alice":   "0x1111111111111111111111111111111111111111",
	"bob":     "0x2222222222222222222222222222222222222222",
	"charlie": "0x3333333333333333333333333333333333333333",
	"david":   "0x4444444444444444444444444444444444444444",
	"eve":     "0x5555555555555555555555555555555555555555",
}

const reporter = "0x9999999999999999999999999999999999999999"

func main() {
	baseDir := findTestdataDir()

	// Every date hangs off a fixed anchor, and the hour offsets below are
	// plain arithmetic, so repeated runs produce byte-identical output and
	// the content-derived event IDs stay stable.
	anchor := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	type scenario struct {
		payer, payee string
		amount       int
		daysLate     int
		defaulted    bool
	}

	scenarios := []scenario{
		// alice: clean history.
		{"alice", "bob", 100, 0, false},
		{"alice", "charlie", 150, 0, false},
		{"alice", "david", 200, 0, false},
		{"alice", "eve", 175, 0, false},
		{"alice", "bob", 125, 0, false},

		// bob: mostly on time, two short lates.
		{"bob", "charlie", 100, 0, false},
		{"bob", "david", 150, 5, false},
		{"bob", "eve", 200, 0, false},
		{"bob", "alice", 100, 3, false},

		// charlie: mid-tier lates.
		{"charlie", "david", 100, 0, false},
		{"charlie", "eve", 150, 10, false},
		{"charlie", "alice", 200, 15, false},
		{"charlie", "bob", 175, 0, false},

		// david: long lates.
		{"david", "eve", 100, 20, false},
		{"david", "alice", 150, 35, false},
		{"david", "bob", 200, 0, false},
		{"david", "charlie", 175, 40, false},

		// eve: lates and defaults.
		{"eve", "alice", 100, 0, true},
		{"eve", "bob", 150, 25, false},
		{"eve", "charlie", 200, 0, true},
		{"eve", "david", 175, 50, false},
	}

	events := make([]event, 0, len(scenarios))
	for i, sc := range scenarios {
		daysBack := sc.daysLate
		if daysBack == 0 {
			daysBack = 1
		}
		due := anchor.AddDate(0, 0, -daysBack)

		e := event{
			PayerWallet:    wallets[sc.payer],
			PayeeWallet:    wallets[sc.payee],
			Amount:         fmt.Sprintf("%d", sc.amount),
			Currency:       "USD",
			DueDate:        due.Format(time.RFC3339),
			Status:         "on_time",
			ReporterWallet: reporter,
		}

		switch {
		case sc.defaulted:
			e.Status = "defaulted"
		case sc.daysLate > 0:
			e.Status = "late"
			paid := anchor.Format(time.RFC3339)
			e.PaymentDate = &paid
		default:
			paid := due.Add(-time.Duration(i%48+1) * time.Hour).Format(time.RFC3339)
			e.PaymentDate = &paid
		}

		events = append(events, e)
	}

	writeJSONFile(filepath.Join(baseDir, "events.json"), events)
	fmt.Printf("Generated %d payment events -> events.json\n", len(events))
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	candidates := []string{
		"testdata",
		filepath.Join("..", "..", "testdata"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
