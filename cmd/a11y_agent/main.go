// Package main provides the entry point for the accessibility remediation agent.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "a11y_agent",
	Short: "Accessibility remediation agent",
	Long: `a11y_agent scans an HTML document for missing image descriptions, unlabeled
form fields and vague link text, generates corrective content with a
multi-modal model, applies it to the document tree and re-audits the result.`,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
