package repository

import "errors"

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the tunable configuration of a [Client].
type Options struct {
	ownerIndexName string
	pageSize       int32
	scanLimit      int32
}

func newOptions() *Options {
	return &Options{
		ownerIndexName: GSIOwner,
		pageSize:       50,
		scanLimit:      200,
	}
}

func (o *Options) validate() error {
	if o.ownerIndexName == "" {
		return errors.New("owner index name must not be empty")
	}
	if o.pageSize <= 0 {
		return errors.New("page size must be greater than zero")
	}
	if o.scanLimit <= 0 {
		return errors.New("scan limit must be greater than zero")
	}
	return nil
}

// WithOwnerIndexName overrides the name of the owner GSI. The default is
// [GSIOwner].
func WithOwnerIndexName(name string) Option {
	return func(o *Options) {
		o.ownerIndexName = name
	}
}

// WithPageSize sets the page size used by queries. The default is 50.
func WithPageSize(n int32) Option {
	return func(o *Options) {
		o.pageSize = n
	}
}

// WithScanLimit caps the item count examined by fallback scans. The default
// is 200.
func WithScanLimit(n int32) Option {
	return func(o *Options) {
		o.scanLimit = n
	}
}
