package main

import (
	"os"

	"github.com/albertocavalcante/rfls/internal/cmd/rfquery"
)

func main() {
	os.Exit(rfquery.Run(os.Args[1:]))
}
