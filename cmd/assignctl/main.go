package main

import (
	"fmt"
	"os"

	"outreach_backend/internal/assignctl"
)

func main() {
	if err := assignctl.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
