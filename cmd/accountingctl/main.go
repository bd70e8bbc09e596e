package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(connect).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "accountingctl: %v\n", err)
		os.Exit(1)
	}
}
