package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emrgen/mediakit"
	"github.com/emrgen/mediakit/internal/config"
	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/identity"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func openEngine() (*mediakit.Engine, error) {
	return mediakit.New(config.LoadConfig())
}

func closeEngine(e *mediakit.Engine) {
	if err := e.Close(); err != nil {
		color.Red("error closing engine: %v", err)
	}
}

// readDocument decodes a document from path, or from stdin when path is "-".
func readDocument(path string) (*document.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	return document.Decode(data)
}

func parseRef(value string) (identity.ContextRef, error) {
	ref, err := identity.Parse(value)
	if err != nil {
		return identity.ContextRef{}, fmt.Errorf("invalid context %q, expected user:<id> or guest:<session>", value)
	}

	return ref, nil
}

func printField(label, value string) {
	color.Set(color.FgCyan)
	fmt.Print(label)
	color.Unset()
	fmt.Printf(": %s\n", value)
}

func printViolations(violations []document.Violation) {
	for _, v := range violations {
		color.Red("%s", v.String())
	}
}

// checkMissingFlags reports the required flags that are not set and returns
// true when any is missing
func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	var providedFlags []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missingFlags = append(missingFlags, required)
		} else {
			value := cmd.Flag(required).Value.String()
			providedFlags = append(providedFlags, fmt.Sprintf("--%s=%s", required, value))
		}
	}

	if len(missingFlags) > 0 {
		var msg string
		for _, f := range missingFlags {
			msg += fmt.Sprintf("--%s ", f)
		}

		color.Red("missing: %s\n", msg)
		if len(providedFlags) > 0 {
			provided := strings.Join(providedFlags, " ")
			color.Green("provide: %s\n", provided)
		}

		cmd.Println("")
		cmd.Usage()
		return true
	}

	return false
}
