package main

import (
	"os"

	"github.com/meshpay/creditledger/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
