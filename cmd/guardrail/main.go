package main

import (
	"os"

	"guardrail/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
