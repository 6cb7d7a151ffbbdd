package main

import (
	"os"

	servecmder "github.com/papercomputeco/cortex/cmd/cortex/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "cortexapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .cortex/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
