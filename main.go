package main

import (
	"os"

	"github.com/paneelbeheer/paneelbeheer/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
