package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rulego/dlquery"
	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/execution"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/logger"
	"github.com/rulego/dlquery/translation"
	"github.com/rulego/dlquery/utils/table"
)

// queryOptions describes a single-block request built from flags.
type queryOptions struct {
	*rootOptions
	Dataset  string
	Rows     []string
	Measures []string
	OrderBy  []string
	Limit    int
	Offset   int
	Totals   bool
}

func (o *queryOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Dataset, "dataset", "", "dataset YAML file")
	cmd.Flags().StringArrayVar(&o.Rows, "row", nil, "dimension field id, repeatable")
	cmd.Flags().StringArrayVar(&o.Measures, "measure", nil, "measure field id, repeatable")
	cmd.Flags().StringArrayVar(&o.OrderBy, "order", nil, "order by field id, append :desc for descending")
	cmd.Flags().IntVar(&o.Limit, "limit", 0, "row limit, 0 means none")
	cmd.Flags().IntVar(&o.Offset, "offset", 0, "row offset")
	cmd.Flags().BoolVar(&o.Totals, "totals", false, "append a totals row")
	_ = cmd.MarkFlagRequired("dataset")
}

// request 读取数据集并由参数构造块图例
func (o *queryOptions) request() (*dlquery.Request, map[int]string, error) {
	f, err := os.Open(o.Dataset)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	ds, err := dataset.Load(f)
	if err != nil {
		return nil, nil, err
	}

	var (
		items    []*legend.Item
		measures []*legend.Item
		titles   = make(map[int]string)
	)
	add := func(id string, role legend.Role, spec legend.RoleSpec) *legend.Item {
		item := &legend.Item{LegendItemID: len(items), ID: id, Role: role, RoleSpec: spec}
		items = append(items, item)
		if role != legend.RoleOrderBy {
			titles[item.LegendItemID] = id
		}
		return item
	}
	for _, id := range o.Rows {
		add(id, legend.RoleRow, nil)
	}
	for _, id := range o.Measures {
		measures = append(measures, add(id, legend.RoleMeasure, nil))
	}
	for _, s := range o.OrderBy {
		id, dir, _ := strings.Cut(s, ":")
		direction := legend.Asc
		if strings.EqualFold(dir, "desc") {
			direction = legend.Desc
		}
		add(id, legend.RoleOrderBy, &legend.OrderByRoleSpec{Direction: direction})
	}
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("nothing to select, use --row or --measure")
	}

	bl := &legend.BlockLegend{Blocks: []*legend.BlockSpec{{
		BlockID:   0,
		Placement: &legend.RootPlacement{},
		Legend:    legend.New(items...),
	}}}
	if o.Totals && len(measures) > 0 {
		var totals []*legend.Item
		for _, m := range measures {
			item := &legend.Item{LegendItemID: len(items) + len(totals), ID: m.ID, Role: legend.RoleMeasure}
			titles[item.LegendItemID] = "total " + m.ID
			totals = append(totals, item)
		}
		root := 0
		bl.Blocks = append(bl.Blocks, &legend.BlockSpec{
			BlockID:       1,
			ParentBlockID: &root,
			Placement:     &legend.AfterPlacement{},
			Legend:        legend.New(totals...),
		})
	}
	if o.Limit > 0 {
		bl.Meta.Limit = &o.Limit
	}
	if o.Offset > 0 {
		bl.Meta.Offset = &o.Offset
	}
	return &dlquery.Request{Dataset: ds, Legend: bl}, titles, nil
}

// engine builds an engine logging to w. Without a source database queries
// can be planned but not executed.
func (o *queryOptions) engine(w io.Writer, source bool) (*dlquery.Engine, error) {
	config, err := o.config()
	if err != nil {
		return nil, err
	}
	opts := []dlquery.Option{dlquery.WithConfig(config), dlquery.WithoutCache(), dlquery.WithLogOutput(w, logger.WARN)}
	if !source {
		opts = append(opts, dlquery.WithExecutor(execution.ExecutorFunc(
			func(context.Context, *translation.TranslatedQuery) (execution.Stream, error) {
				return nil, errors.New("no source database")
			})))
	}
	return dlquery.New(opts...)
}

type plannedQuery struct {
	ID        string   `json:"id"`
	Level     string   `json:"level"`
	Dialect   string   `json:"dialect"`
	DependsOn []string `json:"dependsOn,omitempty"`
	SQL       string   `json:"sql"`
}

func newPlanCommand(root *rootOptions) *cobra.Command {
	opts := &queryOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:     "plan",
		Short:   "Compile a request and print its queries",
		Example: `  dlformula plan -d MYSQL --dataset sales.yaml --row city --measure amount --order amount:desc`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, _, err := opts.request()
			if err != nil {
				return err
			}
			e, err := opts.engine(cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer e.Close()
			p, err := e.Plan(req)
			if err != nil {
				return err
			}
			var out []plannedQuery
			for _, q := range p.MultiQuery.Queries {
				out = append(out, plannedQuery{
					ID:        q.ID,
					Level:     string(q.Level),
					Dialect:   q.Dialect.String(),
					DependsOn: q.DependsOn,
					SQL:       q.SQL,
				})
			}
			return opts.emit(cmd.OutOrStdout(), out, func(w io.Writer) {
				for _, q := range out {
					fmt.Fprintf(w, "-- %s (%s, %s)\n%s\n\n", q.ID, q.Level, q.Dialect, q.SQL)
				}
			})
		},
	}
	opts.bind(cmd)
	return cmd
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &queryOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a request against the configured source database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, titles, err := opts.request()
			if err != nil {
				return err
			}
			e, err := opts.engine(cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer e.Close()
			resp, err := e.Execute(context.Background(), req)
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), resp.Stream, func(w io.Writer) {
				table.PrintStream(w, resp.Stream, titles)
			})
		},
	}
	opts.bind(cmd)
	return cmd
}
