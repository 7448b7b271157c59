package main

import (
	"os"

	"attack-timing/cmd"
	"attack-timing/internal/logging"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logging.GetLogger().WithError(err).Error("Failed to execute command")
		os.Exit(1)
	}
}
