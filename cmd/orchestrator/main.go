package main

import (
	"fmt"
	"os"

	"github.com/banktrail/ingestor/internal/bootstrap"
)

// @title			Banking Data Ingestion Orchestrator
// @version		v1.0.0
// @description	Sync engine, scheduler, and health scorer for linked bank connections.
// @license.name	Apache 2.0
// @license.url	http://www.apache.org/licenses/LICENSE-2.0.html
// @host			localhost:3003
// @BasePath		/
func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap.Start(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start orchestrator: %v\n", err)
		os.Exit(1)
	}

	app.Launcher.Run()
}
