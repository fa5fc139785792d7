package main

import (
	"os"

	tonearmcmder "github.com/tonearmlabs/tonearm/cmd/tonearm"
)

func main() {
	cmd := tonearmcmder.NewTonearmCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
