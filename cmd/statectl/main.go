// Command statectl converts a state document between YAML and JSON.
//
//	statectl [-reverse] <in> <out>
//
// By default in is YAML and out is the JSON document the engine loads. With
// -reverse in is JSON and out is YAML.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jensholdgaard/trinity/internal/state"
)

func main() {
	reverse := flag.Bool("reverse", false, "convert JSON to YAML instead")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: statectl [-reverse] <in> <out>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), flag.Arg(1), *reverse); err != nil {
		slog.Error("conversion failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(in, out string, reverse bool) error {
	b, err := os.ReadFile(filepath.Clean(in))
	if err != nil {
		return fmt.Errorf("reading %s: %w", in, err)
	}
	conv := yamlToJSON
	if reverse {
		conv = jsonToYAML
	}
	res, err := conv(b)
	if err != nil {
		return fmt.Errorf("converting %s: %w", in, err)
	}
	if err := state.WriteFile(out, res); err != nil {
		return err
	}
	slog.Info("converted", slog.String("in", in), slog.String("out", out), slog.Int("bytes", len(res)))
	return nil
}
