package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/rulego/dlquery/connectors/all"
	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/functions"
	"github.com/rulego/dlquery/types"
)

// rootOptions holds the global flags.
type rootOptions struct {
	Config  string
	Dialect string
	Format  string // text 或 json
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "dlformula",
		Short:         "DataLens formula tool",
		Long:          "Parse, inspect and translate DataLens formulas, and plan or run chart requests.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVarP(&opts.Dialect, "dialect", "d", "", "target dialect, overrides the configuration")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newParseCommand(opts))
	cmd.AddCommand(newInspectCommand(opts))
	cmd.AddCommand(newTranslateCommand(opts))
	cmd.AddCommand(newDialectsCommand(opts))
	cmd.AddCommand(newPlanCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}

// config loads the configuration file and applies the dialect flag.
func (o *rootOptions) config() (types.Config, error) {
	config := types.DefaultConfig()
	if o.Config != "" {
		var err error
		if config, err = types.LoadConfig(o.Config); err != nil {
			return config, err
		}
	}
	if o.Dialect != "" {
		config.Dialect = o.Dialect
	}
	return config, config.Validate()
}

// dialect returns the single dialect to translate to. A backend name means
// its newest version.
func (o *rootOptions) dialect() (dialect.DialectCombo, error) {
	config, err := o.config()
	if err != nil {
		return dialect.Empty, err
	}
	d, err := dialect.ParseDialect(config.Dialect)
	if err != nil {
		return dialect.Empty, err
	}
	if !d.IsSingle() {
		d = dialect.Latest(d.Backend())
	}
	return d, nil
}

func registry() (*functions.Registry, error) {
	return all.Registry()
}

// emit writes v as JSON, or text through the text callback.
func (o *rootOptions) emit(w io.Writer, v interface{}, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
