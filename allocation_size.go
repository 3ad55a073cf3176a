package customalloc

import "math"

// AllocationSize is a cell count carried as its own type so call sites never
// confuse bytes and cells, and so the byte->cell rounding happens in exactly
// one place (spec.md's AllocationSize.hpp). Arithmetic saturates at
// math.MaxUint64 cells instead of wrapping, since a wrapped size would
// silently turn a too-large request into a tiny one.
type AllocationSize struct {
	cells uint64
}

// AllocationSizeCells constructs an AllocationSize directly from a cell
// count.
func AllocationSizeCells(cells uint64) AllocationSize {
	return AllocationSize{cells: cells}
}

// AllocationSizeBytesAtLeast rounds bytes up to the next whole number of
// cells: the smallest AllocationSize whose byte capacity is >= bytes.
func AllocationSizeBytesAtLeast(bytes uint64) AllocationSize {
	return AllocationSize{cells: (bytes + CellSize - 1) / CellSize}
}

// AllocationSizeBytesExactly requires bytes to already be a whole number of
// cells, panicking otherwise. Used where the caller controls the size and a
// non-cell-aligned value indicates a programming error rather than
// user input.
func AllocationSizeBytesExactly(bytes uint64) AllocationSize {
	if bytes%CellSize != 0 {
		panic("customalloc: size is not a whole number of cells")
	}
	return AllocationSize{cells: bytes / CellSize}
}

// InCells returns the size as a cell count.
func (s AllocationSize) InCells() uint64 { return s.cells }

// InBytes returns the size as a byte count.
func (s AllocationSize) InBytes() uint64 { return s.cells * CellSize }

// Add returns s + other, saturating at math.MaxUint64 cells.
func (s AllocationSize) Add(other AllocationSize) AllocationSize {
	sum := s.cells + other.cells
	if sum < s.cells {
		return AllocationSize{cells: math.MaxUint64}
	}
	return AllocationSize{cells: sum}
}

// Sub returns s - other, floored at zero cells (never underflows).
func (s AllocationSize) Sub(other AllocationSize) AllocationSize {
	if other.cells >= s.cells {
		return AllocationSize{cells: 0}
	}
	return AllocationSize{cells: s.cells - other.cells}
}

// Mul returns s * factor, saturating at math.MaxUint64 cells.
func (s AllocationSize) Mul(factor uint64) AllocationSize {
	if s.cells == 0 || factor == 0 {
		return AllocationSize{cells: 0}
	}
	product := s.cells * factor
	if product/factor != s.cells {
		return AllocationSize{cells: math.MaxUint64}
	}
	return AllocationSize{cells: product}
}

// IsSaturated reports whether s is the saturation value produced by an
// overflowing Add or Mul, as opposed to a genuine math.MaxUint64-cell
// request (a distinction this package does not need to make: both describe
// an allocation no caller can actually service).
func (s AllocationSize) IsSaturated() bool { return s.cells == math.MaxUint64 }

// Less reports whether s represents fewer cells than other.
func (s AllocationSize) Less(other AllocationSize) bool { return s.cells < other.cells }

// IsZero reports whether s is zero cells.
func (s AllocationSize) IsZero() bool { return s.cells == 0 }
