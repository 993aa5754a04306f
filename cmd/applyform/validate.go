package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/applyform/internal/application"
)

var errInvalidPayload = errors.New("payload is invalid")

func newValidateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <payload.json>",
		Short: "Validate an application payload against the form rules",
		Long: `Validate an application payload against the form rules.

The payload uses the same JSON shape the form submits. Pass - to read it
from standard input. Every failing field is listed and the command exits
non-zero when the payload is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			raw, err := readPayload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			var data application.FormData
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("decoding %s: %w", args[0], err)
			}

			schema := application.NewSchema(application.SchemaOptions{PhoneRegion: cfg.PhoneRegion})
			errs := schema.Validate(&data)
			out := cmd.OutOrStdout()
			if errs.Valid() {
				fmt.Fprintln(out, successMsg("%s is valid", args[0]))
				return nil
			}

			pairs := make([]pair, 0, len(errs))
			for _, path := range errs.Paths() {
				pairs = append(pairs, kv(path, strings.Join(errs[path], "; ")))
			}
			fmt.Fprint(out, keyValues("  ", pairs...))
			return fmt.Errorf("%w: %d field(s) failed", errInvalidPayload, len(pairs))
		},
	}
	cmd.Flags().String("phone-region", "", "Region assumed for phone numbers without a country code")
	return cmd
}

func readPayload(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return raw, nil
}
