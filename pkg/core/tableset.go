package core

// Table is a named frame.
type Table struct {
	Name  string
	Frame *Frame
}

// Copy returns a deep copy of the table.
func (t *Table) Copy() *Table {
	return &Table{Name: t.Name, Frame: t.Frame.Copy()}
}

// Tableset is the named collection of tables flowing between operations.
// Insertion order is kept for display; it carries no meaning for execution.
type Tableset struct {
	order  []string
	tables map[string]*Table
}

// NewTableset creates a tableset from the given tables.
// A later table replaces an earlier one with the same name.
func NewTableset(tables ...*Table) *Tableset {
	ts := &Tableset{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		ts.Set(t)
	}
	return ts
}

// Get returns the table with the given name or an *UnknownTableError.
func (ts *Tableset) Get(name string) (*Table, error) {
	t, ok := ts.tables[name]
	if !ok {
		return nil, &UnknownTableError{Name: name, Available: ts.Names()}
	}
	return t, nil
}

// Frame returns the frame of the named table or an *UnknownTableError.
func (ts *Tableset) Frame(name string) (*Frame, error) {
	t, err := ts.Get(name)
	if err != nil {
		return nil, err
	}
	return t.Frame, nil
}

// Set inserts the table or replaces the table with the same name.
// A replaced table keeps its display position.
func (ts *Tableset) Set(t *Table) {
	if ts.tables == nil {
		ts.tables = make(map[string]*Table)
	}
	if _, exists := ts.tables[t.Name]; !exists {
		ts.order = append(ts.order, t.Name)
	}
	ts.tables[t.Name] = t
}

// SetFrame stores a frame under the given table name.
func (ts *Tableset) SetFrame(name string, f *Frame) {
	ts.Set(&Table{Name: name, Frame: f})
}

// Delete removes the named table. It reports whether the table existed.
func (ts *Tableset) Delete(name string) bool {
	if _, ok := ts.tables[name]; !ok {
		return false
	}
	delete(ts.tables, name)
	for i, n := range ts.order {
		if n == name {
			ts.order = append(ts.order[:i], ts.order[i+1:]...)
			break
		}
	}
	return true
}

// Has reports whether a table with the given name exists.
func (ts *Tableset) Has(name string) bool {
	_, ok := ts.tables[name]
	return ok
}

// Names returns the table names in insertion order.
func (ts *Tableset) Names() []string {
	return append([]string(nil), ts.order...)
}

// Len returns the number of tables.
func (ts *Tableset) Len() int {
	return len(ts.order)
}

// IsEmpty reports whether the tableset holds no tables.
func (ts *Tableset) IsEmpty() bool {
	return ts.Len() == 0
}

// Copy returns a fully independent deep copy.
func (ts *Tableset) Copy() *Tableset {
	out := &Tableset{
		order:  make([]string, 0, len(ts.order)),
		tables: make(map[string]*Table, len(ts.tables)),
	}
	for _, name := range ts.order {
		out.order = append(out.order, name)
		out.tables[name] = ts.tables[name].Copy()
	}
	return out
}

// Equal reports whether both tablesets hold the same tables with equal frames.
// Insertion order is ignored.
func (ts *Tableset) Equal(other *Tableset) bool {
	if ts.Len() != other.Len() {
		return false
	}
	for name, t := range ts.tables {
		ot, ok := other.tables[name]
		if !ok || !t.Frame.Equal(ot.Frame) {
			return false
		}
	}
	return true
}
