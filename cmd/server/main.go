package main

import (
	"log/slog"
	"os"

	servercmd "github.com/hualuo-tech/datagov/internal/cli/servercmd"
)

// Dedicated server binary for deployments that only ship the HTTP service;
// everything else lives in the unified `datagov` CLI.
func main() {
	cmd := servercmd.New()
	cmd.Use = "datagov-server"
	if err := cmd.Execute(); err != nil {
		slog.Error("server exit", "error", err)
		os.Exit(1)
	}
}
