package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/app"
)

func main() {
	_ = godotenv.Load()

	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
