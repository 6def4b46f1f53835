package archtypes

import "sync/atomic"

// OpKind enumerates the uniform iopx operation surface.
type OpKind int

const (
	OpOpen OpKind = iota
	OpClose
	OpPread
	OpPreadAsync
	OpPwrite
	OpFstat
	OpStat
	OpFtruncate
	OpTruncate
	OpFSetXattr
	OpSetXattr
	OpFGetXattr
	OpGetXattr
	OpFRemoveXattr
	OpRemoveXattr
	OpLseek
	OpGetUUID
	OpGetHosts
	OpMkdir
	OpResolve
	OpDup
	OpScan
)

func (k OpKind) String() string {
	switch k {
	case OpOpen:
		return "open"
	case OpClose:
		return "close"
	case OpPread:
		return "pread"
	case OpPreadAsync:
		return "pread_async"
	case OpPwrite:
		return "pwrite"
	case OpFstat:
		return "fstat"
	case OpStat:
		return "stat"
	case OpFtruncate:
		return "ftruncate"
	case OpTruncate:
		return "truncate"
	case OpFSetXattr:
		return "fsetxattr"
	case OpSetXattr:
		return "setxattr"
	case OpFGetXattr:
		return "fgetxattr"
	case OpGetXattr:
		return "getxattr"
	case OpFRemoveXattr:
		return "fremovexattr"
	case OpRemoveXattr:
		return "removexattr"
	case OpLseek:
		return "lseek"
	case OpGetUUID:
		return "getuuid"
	case OpGetHosts:
		return "gethosts"
	case OpMkdir:
		return "mkdir"
	case OpResolve:
		return "resolve"
	case OpDup:
		return "dup"
	case OpScan:
		return "scan"
	default:
		return "unknown"
	}
}

var seqCounter uint64

// NextSeq returns a process-wide monotonic sequence number, used to tag
// requests and to order coalesced read completions.
func NextSeq() uint64 {
	return atomic.AddUint64(&seqCounter, 1)
}

// CompletionFunc is invoked when an async request completes. Cookie is
// opaque caller state threaded back through without interpretation.
type CompletionFunc func(req *Request, cookie any, err error)

// Request carries the arguments and result slots for a single iopx
// operation, mirroring req_t/rqmap_entry from the original engine.
type Request struct {
	Seq  uint64
	Kind OpKind

	Offset int64
	Length int64
	Buffer []byte

	XattrName  string
	XattrValue []byte

	Whence int

	Cbk    CompletionFunc
	Cookie any

	ResultN   int
	ResultErr error
}

// NewRequest allocates a Request tagged with a fresh sequence number.
func NewRequest(kind OpKind) *Request {
	return &Request{Seq: NextSeq(), Kind: kind}
}

// Reset clears a Request back to a reusable state without discarding the
// backing Buffer slice (callers reslice to 0 rather than reallocate).
func (r *Request) Reset() {
	r.Kind = 0
	r.Offset = 0
	r.Length = 0
	if r.Buffer != nil {
		r.Buffer = r.Buffer[:0]
	}
	r.XattrName = ""
	r.XattrValue = nil
	r.Whence = 0
	r.Cbk = nil
	r.Cookie = nil
	r.ResultN = 0
	r.ResultErr = nil
	r.Seq = NextSeq()
}

// Complete records err and invokes the completion callback, if one is set.
// It does not guard against repeated calls: each call invokes the callback.
func (r *Request) Complete(err error) {
	r.ResultErr = err
	if r.Cbk != nil {
		r.Cbk(r, r.Cookie, err)
	}
}
