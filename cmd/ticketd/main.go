package main

import (
	"fmt"
	"os"

	"github.com/diogenes-ai-code/ticketcore/internal/ticketd"
)

func main() {
	if err := ticketd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
