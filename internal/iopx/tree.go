package iopx

// TreeConfig describes an iopx tree recipe: which decorators to stack
// above a driver when building a source or sink tree. engine.MkTree takes
// engine.TreeConfig instead, and no code in the module reads this type.
type TreeConfig struct {
	Product string
	Store   string
	Desc    string

	EnableFastIOService bool
	EnableMetaCache     bool
	MetaCacheTTLSeconds int64
	EnableFDCache       bool
	FDCacheSize         uint32
}
