package operations

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/datarush/pkg/core"
)

// SelectColumns keeps only the listed columns, in the listed order.
var SelectColumns = core.Kind{
	Name:        "select_columns",
	Title:       "Select Columns",
	Description: "Keep only the given columns of a table",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.TableField("table", "Table"),
		core.ColumnsField("columns", "Columns", "table"),
	),
	New: newOperator[selectColumns, *selectColumns],
}

type selectColumns struct {
	Table   string   `param:"table"`
	Columns []string `param:"columns"`
}

func (o *selectColumns) Summary() string {
	return fmt.Sprintf("Select columns %s from `%s`", quoteList(o.Columns), o.Table)
}

func (o *selectColumns) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(o.Table, f, o.Columns...); err != nil {
		return nil, err
	}
	out, err := f.Select(o.Columns...)
	if err != nil {
		return nil, err
	}
	ts.SetFrame(o.Table, out)
	return ts, nil
}

// RenameTable moves a table to a new name.
var RenameTable = core.Kind{
	Name:        "rename_table",
	Title:       "Rename Table",
	Description: "Rename a table",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.TableField("table", "Table"),
		core.StringField("new_name", "New Name"),
	),
	New: newOperator[renameTable, *renameTable],
}

type renameTable struct {
	Table   string `param:"table"`
	NewName string `param:"new_name"`
}

func (o *renameTable) Summary() string {
	return fmt.Sprintf("Rename table `%s` to `%s`", o.Table, o.NewName)
}

func (o *renameTable) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	ts.Delete(o.Table)
	ts.SetFrame(o.NewName, f)
	return ts, nil
}

// CopyTable stores a copy of a table under a second name.
var CopyTable = core.Kind{
	Name:        "copy_table",
	Title:       "Copy Table",
	Description: "Copy a table under a new name",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.TableField("table", "Table"),
		core.StringField("new_name", "New Name"),
	),
	New: newOperator[copyTable, *copyTable],
}

type copyTable struct {
	Table   string `param:"table"`
	NewName string `param:"new_name"`
}

func (o *copyTable) Summary() string {
	return fmt.Sprintf("Copy table `%s` to `%s`", o.Table, o.NewName)
}

func (o *copyTable) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	ts.SetFrame(o.NewName, f.Copy())
	return ts, nil
}

// RenameColumn renames one column of a table.
var RenameColumn = core.Kind{
	Name:        "rename_column",
	Title:       "Rename Column",
	Description: "Rename a column of a table",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.TableField("table", "Table"),
		core.ColumnField("column", "Column", "table"),
		core.StringField("new_name", "New Name"),
	),
	New: newOperator[renameColumn, *renameColumn],
}

type renameColumn struct {
	Table   string `param:"table"`
	Column  string `param:"column"`
	NewName string `param:"new_name"`
}

func (o *renameColumn) Summary() string {
	return fmt.Sprintf("Rename column %s of `%s` to %s", o.Column, o.Table, o.NewName)
}

func (o *renameColumn) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(o.Table, f, o.Column); err != nil {
		return nil, err
	}
	out, err := f.RenameColumn(o.Column, o.NewName)
	if err != nil {
		return nil, err
	}
	ts.SetFrame(o.Table, out)
	return ts, nil
}

// ConcatenateTables stacks tables vertically. The result has the union of
// their columns in order of first appearance; missing cells are nil.
var ConcatenateTables = core.Kind{
	Name:        "concatenate_tables",
	Title:       "Concatenate Tables",
	Description: "Stack tables on top of each other",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.NewField("tables", "Tables", core.ListOf(core.TypeString)),
		core.StringField("output_table", "Output Table").WithDefault("concatenated_table"),
	),
	New: newOperator[concatenateTables, *concatenateTables],
}

type concatenateTables struct {
	Tables      []string `param:"tables"`
	OutputTable string   `param:"output_table"`
}

func (o *concatenateTables) validate() error {
	if len(o.Tables) == 0 {
		return fmt.Errorf("at least one table is required")
	}
	return nil
}

func (o *concatenateTables) Summary() string {
	return fmt.Sprintf("Concatenate %s as `%s`", quoteList(o.Tables), o.OutputTable)
}

func (o *concatenateTables) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	frames := make([]*core.Frame, len(o.Tables))
	var names []string
	seen := map[string]bool{}
	total := 0
	for i, name := range o.Tables {
		f, err := ts.Frame(name)
		if err != nil {
			return nil, err
		}
		frames[i] = f
		total += f.NumRows()
		for _, c := range f.ColumnNames() {
			if !seen[c] {
				seen[c] = true
				names = append(names, c)
			}
		}
	}

	columns := make([]core.Column, len(names))
	for i, name := range names {
		values := make([]any, 0, total)
		for _, f := range frames {
			if col, ok := f.Column(name); ok {
				values = append(values, col...)
			} else {
				values = append(values, make([]any, f.NumRows())...)
			}
		}
		columns[i] = core.Column{Name: name, Values: values}
	}

	out, err := core.NewFrame(columns...)
	if err != nil {
		return nil, err
	}
	ts.SetFrame(o.OutputTable, out)
	return ts, nil
}

// AssertHasColumns fails the run when a table lacks any listed column.
var AssertHasColumns = core.Kind{
	Name:        "assert_has_columns",
	Title:       "Assert Has Columns",
	Description: "Fail unless the table has all the given columns",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.TableField("table", "Table"),
		core.ColumnsField("columns", "Columns", "table"),
	),
	New: newOperator[assertHasColumns, *assertHasColumns],
}

type assertHasColumns struct {
	Table   string   `param:"table"`
	Columns []string `param:"columns"`
}

func (o *assertHasColumns) Summary() string {
	return fmt.Sprintf("Assert `%s` has columns %s", o.Table, quoteList(o.Columns))
}

func (o *assertHasColumns) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(o.Table, f, o.Columns...); err != nil {
		return nil, err
	}
	return ts, nil
}
