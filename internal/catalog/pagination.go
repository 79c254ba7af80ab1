package catalog

import "strconv"

// Page describes where a listing sits within its result set.
type Page struct {
	Number     int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// PrevNumber returns the previous page number.
func (p Page) PrevNumber() int { return p.Number - 1 }

// NextNumber returns the next page number.
func (p Page) NextNumber() int { return p.Number + 1 }

// ParsePage reads a page query value. Anything that is not a positive integer
// yields page 1.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func newPage(number, totalPages int) Page {
	if totalPages < 1 {
		totalPages = 1
	}
	if number < 1 {
		number = 1
	}
	return Page{
		Number:     number,
		TotalPages: totalPages,
		HasPrev:    number > 1,
		HasNext:    number < totalPages,
	}
}

func pagesFor(total, perPage int) int {
	if total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}
