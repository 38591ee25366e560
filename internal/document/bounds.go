package document

import (
	"bytes"
	"fmt"
	"math"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/rescanio/rescan/internal/page"
)

// extractAllBounds reads the MediaBox of every page. The reader library
// panics on some malformed inputs, so each page is isolated behind a
// recover and degrades to the A4 fallback instead of failing the document.
func extractAllBounds(data []byte, count int) []page.BoundsResult {
	results := make([]page.BoundsResult, 0, count)

	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		for i := range count {
			results = append(results, fallbackResult(i, fmt.Sprintf("open reader: %v", err)))
		}
		return results
	}

	for i := range count {
		results = append(results, extractOne(r, i))
	}
	return results
}

func extractOne(r *pdflib.Reader, pageIndex int) (res page.BoundsResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = fallbackResult(pageIndex, fmt.Sprintf("reader panic: %v", rec))
		}
	}()

	if pageIndex >= r.NumPage() {
		return fallbackResult(pageIndex, "page missing from page tree")
	}

	p := r.Page(pageIndex + 1) // reader pages are 1-based
	if p.V.IsNull() {
		return fallbackResult(pageIndex, "null page object")
	}

	mb, ok := findMediaBox(p.V)
	if !ok {
		return fallbackResult(pageIndex, "no MediaBox on page or ancestors")
	}

	b := page.Bounds{
		X0: mb.Index(0).Float64(),
		Y0: mb.Index(1).Float64(),
		X1: mb.Index(2).Float64(),
		Y1: mb.Index(3).Float64(),
	}
	// MediaBox corners may come in any order.
	if b.X0 > b.X1 {
		b.X0, b.X1 = b.X1, b.X0
	}
	if b.Y0 > b.Y1 {
		b.Y0, b.Y1 = b.Y1, b.Y0
	}
	if !b.Valid() || !finite(b) {
		return fallbackResult(pageIndex, "degenerate MediaBox")
	}

	return page.BoundsResult{PageIndex: pageIndex, Bounds: b}
}

// findMediaBox walks from the page dict up through /Parent nodes; MediaBox
// is an inheritable page attribute. The hop limit guards cyclic trees.
func findMediaBox(v pdflib.Value) (pdflib.Value, bool) {
	for range 32 {
		mb := v.Key("MediaBox")
		if !mb.IsNull() && mb.Len() >= 4 {
			return mb, true
		}
		parent := v.Key("Parent")
		if parent.IsNull() {
			break
		}
		v = parent
	}
	return pdflib.Value{}, false
}

func fallbackResult(pageIndex int, reason string) page.BoundsResult {
	return page.BoundsResult{
		PageIndex: pageIndex,
		Bounds:    page.FallbackBounds(),
		Fallback:  true,
		Reason:    reason,
	}
}

func finite(b page.Bounds) bool {
	for _, f := range []float64{b.X0, b.Y0, b.X1, b.Y1} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
