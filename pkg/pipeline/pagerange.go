package pipeline

import (
	"strconv"
	"strings"
)

// AllPages returns [1..total]
func AllPages(total int) []int {
	pages := make([]int, 0, max(total, 0))
	for i := 1; i <= total; i++ {
		pages = append(pages, i)
	}
	return pages
}

// ParsePageRange resolves an expression such as "1-5,8,10" against a
// document of total pages. Malformed and reversed tokens are dropped.
// An empty expression, or one where every token is malformed, selects all
// pages. Well-formed tokens that fall outside [1,total] are clipped, so the
// result may be empty.
func ParsePageRange(expr string, total int) []int {
	if strings.TrimSpace(expr) == "" {
		return AllPages(total)
	}

	seen := make([]bool, max(total, 0)+1)
	valid := false

	for _, tok := range strings.Split(expr, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		if start, end, ok := strings.Cut(tok, "-"); ok {
			a, errA := strconv.Atoi(strings.TrimSpace(start))
			b, errB := strconv.Atoi(strings.TrimSpace(end))
			if errA != nil || errB != nil || a > b {
				continue
			}
			valid = true
			for p := max(1, a); p <= min(total, b); p++ {
				seen[p] = true
			}
			continue
		}

		n, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		valid = true
		if n >= 1 && n <= total {
			seen[n] = true
		}
	}

	if !valid {
		return AllPages(total)
	}

	pages := make([]int, 0)
	for p := 1; p <= total; p++ {
		if seen[p] {
			pages = append(pages, p)
		}
	}
	return pages
}

// SelectPages is ParsePageRange for processors: an expression that resolves
// to no pages is an INVALID_PAGE_RANGE error.
func SelectPages(expr string, total int) ([]int, error) {
	pages := ParsePageRange(expr, total)
	if len(pages) == 0 {
		return nil, NewError(KindInvalidPageRange, "no valid pages in %q (document has %d pages)", expr, total)
	}
	return pages, nil
}
