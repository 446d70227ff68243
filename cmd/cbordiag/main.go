package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	cbor "github.com/synadia-labs/cborcodec/codec"
)

// CLI defines the cbordiag command-line interface.
//
// We deliberately keep it minimal:
//   - input: CBOR file, or "-" for stdin
//   - hex: treat the input as hex text instead of raw bytes
//   - check: validate well-formedness only
//   - canonical: transcode each item to canonical form, printed as hex
//
// The default mode prints one line of RFC diagnostic notation per
// top-level item.
type CLI struct {
	Input     string `arg:"" optional:"" help:"Input CBOR file (defaults to stdin)" default:"-"`
	Hex       bool   `short:"x" help:"Input is hex text rather than raw bytes"`
	Check     bool   `short:"c" help:"Validate well-formedness and exit"`
	Canonical bool   `short:"C" help:"Transcode each item to canonical form (hex output)"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("cbordiag"),
		kong.Description("Print CBOR items in diagnostic notation, validate, or canonicalize."),
	)

	if err := run(&cli); err != nil {
		ctx.FatalIfErrorf(err)
	}
}

func run(cli *CLI) error {
	data, err := readInput(cli.Input)
	if err != nil {
		return err
	}
	if cli.Hex {
		clean := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, string(data))
		data, err = hex.DecodeString(clean)
		if err != nil {
			return fmt.Errorf("decode hex input: %w", err)
		}
	}

	if cli.Check {
		if err := cbor.ValidDocument(data); err != nil {
			return fmt.Errorf("input is not well-formed: %w", err)
		}
		fmt.Println("ok")
		return nil
	}

	if cli.Canonical {
		return transcodeCanonical(data)
	}

	for len(data) > 0 {
		line, rest, err := cbor.Diag(data)
		if err != nil {
			return fmt.Errorf("render item: %w", err)
		}
		fmt.Println(line)
		data = rest
	}
	return nil
}

// transcodeCanonical decodes every item and re-encodes it canonically,
// printing one hex line per item.
func transcodeCanonical(data []byte) error {
	dec := cbor.NewDecoder(bytes.NewReader(data))
	for {
		v, err := dec.Decode()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode item: %w", err)
		}
		out, err := cbor.MarshalCanonical(v)
		if err != nil {
			return fmt.Errorf("re-encode item: %w", err)
		}
		fmt.Println(hex.EncodeToString(out))
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
