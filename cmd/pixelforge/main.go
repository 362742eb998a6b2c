// PixelForge server entry point.
package main

import (
	"os"

	"github.com/pixelforge-ai/pixelforge/cmd/pixelforge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
