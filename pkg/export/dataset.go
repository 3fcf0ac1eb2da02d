package export

// Dataset is the tabular shape consumed by exporters. Rows are keyed by
// header name so callers can build them independently of column order.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}
