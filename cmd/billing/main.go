// Command billing inspects card cycles and imports obligation spreadsheets
// from the command line.
package main

import (
	"os"

	"github.com/carlosmourajunior/minhasfinancas/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := newRootCmd(openStore).Execute(); err != nil {
		os.Exit(1)
	}
}
