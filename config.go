package customalloc

// Config holds the tunables that were compile-time constants in the original
// design (spec.md §4, "Constants") but are runtime fields here so tests can
// exercise small page sizes without rebuilding the package, following the
// teacher's SizeClassConfig/DefaultConfig shape.
type Config struct {
	// FixedBlockPageSize is the byte size of one FixedBlockPage, header
	// included. Must be large enough to hold at least a handful of the
	// largest fixed block size (MaxFixedBlockSize cells).
	FixedBlockPageSize uint64
	// NextFitPageSize is the byte size of one NextFitPage, header included.
	NextFitPageSize uint64
	// ExtraObjectPageSize is the byte size of one ExtraObjectPage, header
	// included.
	ExtraObjectPageSize uint64

	// SingleObjectPageSizeThreshold is the cell count above which an
	// allocation is routed to a dedicated SingleObjectPage instead of a
	// NextFitPage. Must equal MaxNextFitBlockSize(cfg) for the configured
	// NextFitPageSize: any gap between the two leaves a cell-count range
	// routed to NextFit that no NextFitPage can ever actually serve.
	SingleObjectPageSizeThreshold uint64

	// ObjectHeaderBytes is not read by the allocator. The header reserved
	// ahead of every allocated object/array is always objectHeaderSize bytes,
	// fixed by the objectHeader layout (GC mark word, extra-data link, array
	// count; 24 bytes on 64-bit platforms), whatever this field holds; see
	// ObjectHeader.GCData.
	ObjectHeaderBytes uint32

	// DisableMmap forces every raw page to come from the calloc-equivalent
	// fallback (internal/rawmem.Calloc) instead of a real OS mapping.
	// Intended for tests and for platforms without anonymous mmap/VirtualAlloc.
	DisableMmap bool
	// UsePopulateFlag requests MAP_POPULATE on Linux so pages are
	// prefaulted at map time rather than on first touch. Ignored on other
	// platforms and when DisableMmap is set.
	UsePopulateFlag bool

	// MaxPageAcquireAttempts bounds two retry loops: the number of unswept
	// pages PageStore.GetPage sweeps on a caller's behalf before falling back
	// to an empty or fresh page, and the number of pages ThreadData tries for
	// one allocation before failing with ErrPageAcquisitionFailed (spec.md §9
	// open question: the original loops unboundedly under the assumption
	// concurrent sweep always terminates; this package bounds it instead,
	// since an unbounded retry hides bugs rather than tolerating expected
	// contention).
	MaxPageAcquireAttempts int
}

// CellSize is the fixed allocation quantum, 8 bytes (one machine word),
// matching spec.md's Cell definition. It is not configurable: the
// fixed-block bucket math and the free-range header layout both assume it.
const CellSize = 8

// MaxFixedBlockSize is the largest block size, in cells, a FixedBlockPage
// may serve (spec.md §4.3).
const MaxFixedBlockSize = 128

// PageAlignment is the required alignment of every raw page allocation.
const PageAlignment = 8

// DefaultConfig mirrors the original compile-time constants (Constants.hpp /
// CustomAllocConstants.hpp): 256 KiB fixed-block and next-fit pages, a 64 KiB
// extra-object page, and NextFitPage's own cell budget used as the
// single/next-fit size threshold (the original uses
// NEXT_FIT_PAGE_MAX_BLOCK_SIZE for both, so the two tiers never leave a gap
// between them).
var DefaultConfig = buildDefaultConfig()

func buildDefaultConfig() Config {
	cfg := Config{
		FixedBlockPageSize:     256 << 10,
		NextFitPageSize:        256 << 10,
		ExtraObjectPageSize:    64 << 10,
		ObjectHeaderBytes:      8,
		DisableMmap:            false,
		UsePopulateFlag:        false,
		MaxPageAcquireAttempts: 8,
	}
	cfg.SingleObjectPageSizeThreshold = uint64(MaxNextFitBlockSize(&cfg))
	return cfg
}
