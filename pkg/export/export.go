package export

// Column pairs a row key with the header printed in the export.
type Column struct {
	Key    string
	Header string
}

// Table defines tabular export content.
type Table struct {
	Title   string
	Columns []Column
	Rows    []map[string]string
}

// Renderer turns a table into encoded bytes with a matching content type.
type Renderer interface {
	Render(table Table) ([]byte, error)
	ContentType() string
	Extension() string
}
