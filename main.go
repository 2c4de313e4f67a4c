package main

import (
	"os"

	"equipix/cmd"
	"equipix/logger"
	"equipix/routes"
)

func main() {
	if err := cmd.NewRootCmd(routes.Version).Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
