package output

import (
	"fmt"

	"github.com/leapstack-labs/datarush/internal/fileio"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// Frame renders the first limit rows of a table; limit <= 0 shows all.
// Empty cells show as NULL outside JSON mode.
func (r *Renderer) Frame(name string, f *core.Frame, limit int) error {
	total := f.NumRows()
	n := total
	if limit > 0 && limit < total {
		n = limit
	}

	if r.mode == ModeJSON {
		records := make([]map[string]any, n)
		for i := range n {
			records[i] = f.RowMap(i)
		}
		return r.JSON(map[string]any{"table": name, "rows": total, "records": records})
	}

	if r.mode != ModeCSV {
		r.Header(name)
	}
	rows := make([][]string, n)
	for i := range n {
		cells := f.Row(i)
		row := make([]string, len(cells))
		for c, v := range cells {
			if v == nil {
				row[c] = "NULL"
				continue
			}
			row[c] = fileio.FormatCell(v)
		}
		rows[i] = row
	}
	if err := r.Table(f.ColumnNames(), rows); err != nil {
		return err
	}
	if r.mode != ModeCSV {
		if n < total {
			r.Println(r.Muted(plural(n, total)))
		} else {
			r.Println(r.Muted(rowCount(total)))
		}
	}
	return nil
}

// Tableset renders every table in ts in insertion order.
func (r *Renderer) Tableset(ts *core.Tableset, limit int) error {
	for _, name := range ts.Names() {
		f, err := ts.Frame(name)
		if err != nil {
			return err
		}
		if err := r.Frame(name, f, limit); err != nil {
			return err
		}
	}
	return nil
}

func plural(shown, total int) string {
	return fmt.Sprintf("(showing %d of %d rows)", shown, total)
}

func rowCount(n int) string {
	if n == 1 {
		return "(1 row)"
	}
	return fmt.Sprintf("(%d rows)", n)
}
