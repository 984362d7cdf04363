// Command license-server runs the SPC Pulse license issuance and
// activation service.
package main

import (
	"context"
	"fmt"
	"os"

	"spcpulse/internal/app"
	"spcpulse/internal/infrastructure"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "license-server: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	if err := application.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "license-server: %v\n", err)
		os.Exit(1)
	}
}
