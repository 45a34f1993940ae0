package main

import (
	"os"

	"github.com/YoshitsuguKoike/loanstage/internal/interface/cli"
)

func main() {
	if err := cli.Execute(cli.NewRoot(), os.Stderr); err != nil {
		os.Exit(1)
	}
}
