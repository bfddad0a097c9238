package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/inspect"
	"github.com/rulego/dlquery/translation"
)

type parseResult struct {
	Formula string   `json:"formula"`
	Root    string   `json:"root"`
	Fields  []string `json:"fields"`
}

func newParseCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <formula>",
		Short: "Parse a formula and print its canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := formula.Parse(args[0])
			if err != nil {
				return err
			}
			res := parseResult{
				Formula: formula.Render(node),
				Root:    formula.NodeName(node),
				Fields:  inspect.UsedFieldNames(node),
			}
			return opts.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintln(w, res.Formula)
				fmt.Fprintf(w, "root: %s\n", res.Root)
				if len(res.Fields) > 0 {
					fmt.Fprintf(w, "fields: %s\n", strings.Join(res.Fields, ", "))
				}
			})
		},
	}
}

type inspectResult struct {
	Formula              string `json:"formula"`
	Type                 string `json:"type"`
	Aggregate            bool   `json:"aggregate"`
	Window               bool   `json:"window"`
	Constant             bool   `json:"constant"`
	ExtendedAggregations bool   `json:"extendedAggregations"`
}

func newInspectCommand(opts *rootOptions) *cobra.Command {
	var fieldTypes []string
	cmd := &cobra.Command{
		Use:     "inspect <formula>",
		Short:   "Classify a formula and infer its type",
		Example: `  dlformula inspect "SUM([sales]) / COUNTD([city])" --field sales=float --field city=string`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := formula.Parse(args[0])
			if err != nil {
				return err
			}
			types, err := parseFieldTypes(fieldTypes)
			if err != nil {
				return err
			}
			reg, err := registry()
			if err != nil {
				return err
			}
			env := inspect.NewEnvironment(reg, types)
			t, err := inspect.InferDataType(node, env)
			if err != nil {
				return err
			}
			res := inspectResult{
				Formula:              formula.Render(node),
				Type:                 t.String(),
				Aggregate:            inspect.IsAggregateExpression(node, env),
				Window:               inspect.IsWindowExpression(node, env),
				Constant:             inspect.IsConstantExpression(node, env),
				ExtendedAggregations: inspect.ContainsExtendedAggregations(node, env),
			}
			return opts.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "formula:   %s\n", res.Formula)
				fmt.Fprintf(w, "type:      %s\n", res.Type)
				fmt.Fprintf(w, "aggregate: %t\n", res.Aggregate)
				fmt.Fprintf(w, "window:    %t\n", res.Window)
				fmt.Fprintf(w, "constant:  %t\n", res.Constant)
				fmt.Fprintf(w, "lod:       %t\n", res.ExtendedAggregations)
			})
		},
	}
	cmd.Flags().StringArrayVar(&fieldTypes, "field", nil, "field type as name=type, repeatable")
	return cmd
}

func parseFieldTypes(specs []string) (map[string]formula.DataType, error) {
	out := make(map[string]formula.DataType, len(specs))
	for _, s := range specs {
		name, typeName, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field %q, expected name=type", s)
		}
		t, ok := formula.ParseDataType(typeName)
		if !ok {
			return nil, fmt.Errorf("unknown type %q of field %s", typeName, name)
		}
		out[name] = t
	}
	return out, nil
}

type translateResult struct {
	Formula string `json:"formula"`
	Dialect string `json:"dialect"`
	SQL     string `json:"sql"`
}

func newTranslateCommand(opts *rootOptions) *cobra.Command {
	var fieldTypes []string
	cmd := &cobra.Command{
		Use:   "translate <formula>",
		Short: "Translate a formula to the SQL of a dialect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := formula.Parse(args[0])
			if err != nil {
				return err
			}
			d, err := opts.dialect()
			if err != nil {
				return err
			}
			types, err := parseFieldTypes(fieldTypes)
			if err != nil {
				return err
			}
			reg, err := registry()
			if err != nil {
				return err
			}
			tr, err := translation.NewTranslator(reg, d, inspect.NewEnvironment(reg, types))
			if err != nil {
				return err
			}
			sql, err := tr.Translate(node)
			if err != nil {
				return err
			}
			res := translateResult{Formula: formula.Render(node), Dialect: d.String(), SQL: sql}
			return opts.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintln(w, res.SQL)
			})
		},
	}
	cmd.Flags().StringArrayVar(&fieldTypes, "field", nil, "field type as name=type, repeatable")
	return cmd
}

func newDialectsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List the supported dialects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := dialect.Names()
			return opts.emit(cmd.OutOrStdout(), names, func(w io.Writer) {
				for _, n := range names {
					fmt.Fprintln(w, n)
				}
			})
		},
	}
}
