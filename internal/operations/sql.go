package operations

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/datarush/internal/sqlio"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// DatabaseQuery runs a query against a database and loads the result.
var DatabaseQuery = core.Kind{
	Name:        "database_query",
	Title:       "Database Query",
	Description: "Run a SQL query against a database and load the result as a table",
	Category:    core.CategorySource,
	Schema: core.NewSchema(
		core.StringField("driver", "Driver").WithDefault("duckdb").WithDescription("duckdb, postgres or sqlite"),
		core.StringField("dsn", "Connection String").WithDefault(""),
		core.StringField("query", "Query"),
		core.StringField("table_name", "Table Name").WithDefault("query_table"),
	),
	New: newOperator[databaseQuery, *databaseQuery],
}

type databaseQuery struct {
	Driver    string `param:"driver"`
	DSN       string `param:"dsn"`
	Query     string `param:"query"`
	TableName string `param:"table_name"`
}

func (o *databaseQuery) validate() error {
	_, err := sqlio.Lookup(o.Driver)
	return err
}

func (o *databaseQuery) Summary() string {
	return fmt.Sprintf("Query %s database into `%s` table", o.Driver, o.TableName)
}

func (o *databaseQuery) Operate(ctx context.Context, ts *core.Tableset) (*core.Tableset, error) {
	db, _, err := sqlio.Open(ctx, o.Driver, o.DSN, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	f, err := sqlio.ReadFrame(ctx, db, o.Query)
	if err != nil {
		return nil, err
	}
	ts.SetFrame(o.TableName, f)
	return ts, nil
}

// DatabaseSink writes a table into a database table.
var DatabaseSink = core.Kind{
	Name:        "database_sink",
	Title:       "Database Sink",
	Description: "Write a table into a database table",
	Category:    core.CategorySink,
	Schema: core.NewSchema(
		core.TableField("table", "Table"),
		core.StringField("driver", "Driver").WithDefault("duckdb").WithDescription("duckdb, postgres or sqlite"),
		core.StringField("dsn", "Connection String"),
		core.StringField("target_table", "Target Table").WithDefault("").WithDescription("Defaults to the table name"),
		core.EnumField("mode", "If Exists", sqlio.WriteModes...).WithDefault(string(sqlio.WriteReplace)),
	),
	New: newOperator[databaseSink, *databaseSink],
}

type databaseSink struct {
	Table       string `param:"table"`
	Driver      string `param:"driver"`
	DSN         string `param:"dsn"`
	TargetTable string `param:"target_table"`
	Mode        string `param:"mode"`
}

func (o *databaseSink) validate() error {
	_, err := sqlio.Lookup(o.Driver)
	return err
}

func (o *databaseSink) target() string {
	if o.TargetTable == "" {
		return o.Table
	}
	return o.TargetTable
}

func (o *databaseSink) Summary() string {
	return fmt.Sprintf("Write `%s` to %s table %s (%s)", o.Table, o.Driver, o.target(), o.Mode)
}

func (o *databaseSink) Operate(ctx context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}

	db, d, err := sqlio.Open(ctx, o.Driver, o.DSN, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	if err := sqlio.WriteFrame(ctx, db, d, o.target(), f, sqlio.WriteMode(o.Mode)); err != nil {
		return nil, err
	}
	return ts, nil
}

// SQLQuery runs SQL over the tableset with an in-memory DuckDB database.
// Each selected table is loaded under its own name.
var SQLQuery = core.Kind{
	Name:        "sql_query",
	Title:       "SQL Query",
	Description: "Query tables with SQL (DuckDB) and store the result as a table",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.StringField("query", "Query"),
		core.NewField("tables", "Tables", core.ListOf(core.TypeString)).
			WithDefault([]any{}).
			WithDescription("Tables to expose to the query, all when empty"),
		core.StringField("output_table", "Output Table").WithDefault("query_result"),
	),
	New: newOperator[sqlQuery, *sqlQuery],
}

type sqlQuery struct {
	Query       string   `param:"query"`
	Tables      []string `param:"tables"`
	OutputTable string   `param:"output_table"`
}

func (o *sqlQuery) Summary() string {
	return fmt.Sprintf("Run SQL query into `%s` table", o.OutputTable)
}

func (o *sqlQuery) Operate(ctx context.Context, ts *core.Tableset) (*core.Tableset, error) {
	tables := o.Tables
	if len(tables) == 0 {
		tables = ts.Names()
	}

	db, d, err := sqlio.Open(ctx, "duckdb", "", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	// An in-memory database lives on a single connection.
	db.SetMaxOpenConns(1)

	for _, name := range tables {
		f, err := ts.Frame(name)
		if err != nil {
			return nil, err
		}
		if err := sqlio.WriteFrame(ctx, db, d, name, f, sqlio.WriteReplace); err != nil {
			return nil, fmt.Errorf("loading table %q: %w", name, err)
		}
	}

	result, err := sqlio.ReadFrame(ctx, db, o.Query)
	if err != nil {
		return nil, err
	}
	ts.SetFrame(o.OutputTable, result)
	return ts, nil
}
