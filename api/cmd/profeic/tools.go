package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"profeic/api/internal/decode"
	"profeic/api/internal/decode/schemas"
)

var (
	decodeKind string
	decodeFile string
)

var decodeCmd = &cobra.Command{
	Use:   "decode --kind KIND [--file FILE]",
	Short: "Decode saved model output and print the normalized record",
	Long: `Reads raw model text from --file or stdin, runs the tolerant decoder for
KIND and prints the record as JSON. Exits non-zero when decoding fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, ok := schemas.Lookup(decodeKind)
		if !ok {
			return fmt.Errorf("unknown kind %q; known: %s", decodeKind, strings.Join(schemas.Kinds(), ", "))
		}
		var in io.Reader = cmd.InOrStdin()
		if decodeFile != "" && decodeFile != "-" {
			f, err := os.Open(decodeFile)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		raw, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		rec, err := decode.Decode(string(raw), d)
		if err != nil {
			var f *decode.Failure
			if errors.As(err, &f) {
				fmt.Fprintf(cmd.ErrOrStderr(), "kind:  %s\nfield: %s\nkeys:  %s\n", f.Kind, f.Field, strings.Join(f.Keys, ", "))
			}
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(rec)
	},
}

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List document kinds and their required fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg := schemas.Builtin()
		out := cmd.OutOrStdout()
		for _, kind := range reg.Kinds() {
			s, _ := reg.Schema(kind)
			_, hasFallback := reg.Fallback(kind)
			fmt.Fprintf(out, "%-18s %-34s required: %s", kind, s.Title, strings.Join(s.Descriptor.Required(), ", "))
			if hasFallback {
				fmt.Fprint(out, "  [fallback]")
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeKind, "kind", "k", "", "document kind (see the schemas command)")
	decodeCmd.Flags().StringVarP(&decodeFile, "file", "f", "", "file with raw model output (default stdin)")
	_ = decodeCmd.MarkFlagRequired("kind")
}
