package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/ctxpack/internal/security"
)

const maxInputDepth = 32

// readInput reads the named file, or stdin when name is empty or "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

// decodeInput reads JSON input into v.
func decodeInput(cmd *cobra.Command, args []string, v any) error {
	var name string
	if len(args) > 0 {
		name = args[0]
	}
	data, err := readInput(cmd, name)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if err := security.ValidateJSONDepth(data, maxInputDepth); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding input: %w", err)
	}
	return nil
}

func writeOutput(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
