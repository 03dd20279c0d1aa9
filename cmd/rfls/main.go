package main

import (
	"os"

	"github.com/albertocavalcante/rfls/internal/cmd/rfls"
)

func main() {
	os.Exit(rfls.Run(os.Args[1:]))
}
