package main

import (
	"os"

	"swarmctl/internal/cli"
	"swarmctl/internal/logger"
)

func main() {
	err := cli.Execute()
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
