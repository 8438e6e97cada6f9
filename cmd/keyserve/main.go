// Command keyserve runs the license key server.
package main

import (
	"context"
	"fmt"
	"os"

	"keyserve/internal/app"
)

func main() {
	ctx := context.Background()

	application, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keyserve: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "keyserve: %v\n", err)
		os.Exit(1)
	}
}
