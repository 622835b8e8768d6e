package main

import (
	"github.com/allsafeASM/intel/internal/app"
	"github.com/projectdiscovery/gologger"
)

func main() {
	application, err := app.NewGatewayApplication()
	if err != nil {
		gologger.Fatal().Msgf("Failed to initialize gateway: %v", err)
	}

	if err := application.Start(); err != nil {
		gologger.Fatal().Msgf("Gateway error: %v", err)
	}
}
