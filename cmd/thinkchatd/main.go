// Command thinkchatd runs a reasoning-chat worker behind an HTTP API, or as
// an interactive terminal chat.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
