package main

import (
	"os"

	"github.com/giangittb112000/olympia-sub001/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
