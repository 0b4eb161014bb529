package operations

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/leapstack-labs/datarush/internal/fileio"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// LocalFile loads a CSV or JSON file from disk.
var LocalFile = core.Kind{
	Name:        "local_file",
	Title:       "Local File",
	Description: "Load a CSV or JSON file from the local filesystem",
	Category:    core.CategorySource,
	Schema: core.NewSchema(
		core.StringField("path", "Path").WithDescription("File to read"),
		core.EnumField("content_type", "Content Type", fileio.Formats...).WithDefault(string(fileio.FormatCSV)),
		core.StringField("table_name", "Table Name").WithDefault("local_table"),
	),
	New: newOperator[localFile, *localFile],
}

type localFile struct {
	Path        string `param:"path"`
	ContentType string `param:"content_type"`
	TableName   string `param:"table_name"`
}

func (o *localFile) Summary() string {
	return fmt.Sprintf("Load local file %s as `%s` table", o.Path, o.TableName)
}

func (o *localFile) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := fileio.ReadFile(o.Path, fileio.Format(o.ContentType))
	if err != nil {
		return nil, err
	}
	ts.SetFrame(o.TableName, f)
	return ts, nil
}

// HTTPClient is used by the HTTP source. Tests may replace it.
var HTTPClient = http.DefaultClient

// HTTPSource downloads a CSV or JSON document.
var HTTPSource = core.Kind{
	Name:        "http_source",
	Title:       "HTTP Source",
	Description: "Send an HTTP GET request and load the response body as a table",
	Category:    core.CategorySource,
	Schema: core.NewSchema(
		core.StringField("url", "URL"),
		core.EnumField("content_type", "Content Type", fileio.Formats...).WithDefault(string(fileio.FormatJSON)),
		core.StringField("table_name", "Table Name").WithDefault("http_table"),
	),
	New: newOperator[httpSource, *httpSource],
}

type httpSource struct {
	URL         string `param:"url"`
	ContentType string `param:"content_type"`
	TableName   string `param:"table_name"`
}

func (o *httpSource) Summary() string {
	return fmt.Sprintf("Load HTTP resource %s as `%s` table", o.URL, o.TableName)
}

func (o *httpSource) Operate(ctx context.Context, ts *core.Tableset) (*core.Tableset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", o.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetching %s: unexpected status %s: %s", o.URL, resp.Status, body)
	}

	f, err := fileio.Read(resp.Body, fileio.Format(o.ContentType))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", o.URL, err)
	}
	ts.SetFrame(o.TableName, f)
	return ts, nil
}
