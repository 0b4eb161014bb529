package operations

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/datarush/internal/fileio"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// LocalFileSink writes a table to disk. The tableset passes through unchanged.
var LocalFileSink = core.Kind{
	Name:        "local_file_sink",
	Title:       "Local File Sink",
	Description: "Write a table to a CSV or JSON file",
	Category:    core.CategorySink,
	Schema: core.NewSchema(
		core.TableField("table", "Table"),
		core.StringField("path", "Path").WithDescription("File to write, parent directories are created"),
		core.EnumField("content_type", "Content Type", fileio.Formats...).WithDefault(string(fileio.FormatCSV)),
	),
	New: newOperator[localFileSink, *localFileSink],
}

type localFileSink struct {
	Table       string `param:"table"`
	Path        string `param:"path"`
	ContentType string `param:"content_type"`
}

func (o *localFileSink) Summary() string {
	return fmt.Sprintf("Write `%s` to %s as %s", o.Table, o.Path, o.ContentType)
}

func (o *localFileSink) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	if err := fileio.WriteFile(o.Path, f, fileio.Format(o.ContentType)); err != nil {
		return nil, err
	}
	return ts, nil
}
