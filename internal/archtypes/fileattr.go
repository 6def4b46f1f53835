package archtypes

// FileAttr is the per-thread scratch attribute object described in the
// original file_attr.h. Callers reuse one instance across fstat/stat calls
// on the same thread instead of allocating a fresh one each time; Reset
// clears it back to zero values before the next use.
type FileAttr struct {
	Product   string
	Store     string
	UUID      string
	FileSize  int64
	BlkSize   int64
	NumBlocks int64
}

// Reset clears the scratch object in place so it can be reused.
func (a *FileAttr) Reset() {
	a.Product = ""
	a.Store = ""
	a.UUID = ""
	a.FileSize = 0
	a.BlkSize = 0
	a.NumBlocks = 0
}

// NewFileAttr allocates a zeroed scratch object.
func NewFileAttr() *FileAttr {
	return &FileAttr{}
}
