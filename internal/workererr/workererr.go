// Package workererr classifies the failure kinds an Indexer Worker can hit
// so the Supervisor can decide panic-vs-log without string matching on
// error text.
package workererr

import "fmt"

// Fatal wraps an error that must terminate the owning worker: a transport
// failure from the Chain Client, an unrecognised bridge-contract log shape,
// or a Store write failure. The Supervisor treats any Fatal as cause to
// log and exit non-zero.
type Fatal struct {
	Kind string // "transport", "decode_unknown", "store_write"
	Err  error
}

func (f *Fatal) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Fatal) Unwrap() error { return f.Err }

func NewTransport(err error) error {
	return &Fatal{Kind: "transport", Err: err}
}

func NewDecodeUnknown(txHash string, err error) error {
	return &Fatal{Kind: "decode_unknown", Err: fmt.Errorf("tx %s: %w", txHash, err)}
}

func NewStoreWrite(err error) error {
	return &Fatal{Kind: "store_write", Err: err}
}

// IsFatal reports whether err should terminate the worker.
func IsFatal(err error) bool {
	_, ok := err.(*Fatal)
	return ok
}
