package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"golang.org/x/tools/imports"
)

// CLI defines the cborvectors command-line interface. It regenerates the
// Go table of compliance test vectors from the JSON source of truth, so
// new rows only need to be added in one place.
type CLI struct {
	Input   string `short:"i" help:"Vector JSON file" default:"tests/compliance/testdata/vectors.json"`
	Output  string `short:"o" help:"Generated Go file" default:"tests/compliance/vectors_gen.go"`
	Package string `short:"p" help:"Package name for the generated file" default:"tests"`
}

// row mirrors one entry of the JSON vector file.
type row struct {
	Hex  string `json:"hex"`
	Diag string `json:"diag"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("cborvectors"),
		kong.Description("Regenerate the compliance test vector table from JSON."),
	)

	if err := run(&cli); err != nil {
		ctx.FatalIfErrorf(err)
	}
}

func run(cli *CLI) error {
	data, err := os.ReadFile(cli.Input)
	if err != nil {
		return fmt.Errorf("read vectors: %w", err)
	}
	var rows []row
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("parse vectors: %w", err)
	}
	for i, r := range rows {
		if _, err := hex.DecodeString(r.Hex); err != nil {
			return fmt.Errorf("row %d: bad hex %q: %w", i, r.Hex, err)
		}
	}

	var sb strings.Builder
	sb.WriteString("// Code generated by cborvectors; DO NOT EDIT.\n\n")
	sb.WriteString("package " + cli.Package + "\n\n")
	sb.WriteString("var appendixAVectors = []vector{\n")
	for _, r := range rows {
		sb.WriteString("\t{Hex: " + strconv.Quote(r.Hex) + ", Diag: " + strconv.Quote(r.Diag) + "},\n")
	}
	sb.WriteString("}\n")

	src, err := imports.Process(cli.Output, []byte(sb.String()), nil)
	if err != nil {
		return fmt.Errorf("format generated file: %w", err)
	}
	if err := os.WriteFile(cli.Output, src, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", cli.Output, err)
	}
	fmt.Printf("wrote %s (%d vectors)\n", cli.Output, len(rows))
	return nil
}
