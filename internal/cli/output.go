package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/me/flowgraph/internal/definition"
	"github.com/spf13/cobra"
)

var (
	headingFmt = color.New(color.FgGreen, color.Bold).SprintfFunc()
	warnFmt    = color.New(color.FgYellow).SprintfFunc()
	errorFmt   = color.RGB(229, 50, 50).SprintfFunc()
)

// jsonOutput reports whether results should be printed as JSON.
func jsonOutput() bool {
	return flagOutput == "json"
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printWarnings writes each warning on its own line.
func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintln(w, warnFmt("Warning:"), msg)
	}
}

// readFile reads a local input file, with "-" meaning stdin.
func readFile(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// loadDocument reads and decodes a workflow definition file.
func loadDocument(cmd *cobra.Command, path string) (*definition.Document, error) {
	data, err := readFile(cmd, path)
	if err != nil {
		return nil, err
	}
	doc, err := definition.New(logger).Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// writeDocument renders doc in format to the command output.
func writeDocument(cmd *cobra.Command, doc *definition.Document, format string) error {
	data, err := definition.Marshal(doc, strings.ToLower(format))
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	if err == nil && len(data) > 0 && data[len(data)-1] != '\n' {
		_, err = fmt.Fprintln(cmd.OutOrStdout())
	}
	return err
}
