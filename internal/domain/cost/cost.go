package cost

import (
	"fmt"

	"github.com/kailas-cloud/lawrag/internal/domain/search/mode"
	"github.com/kailas-cloud/lawrag/internal/domain/search/request"
)

// Matrix maps (mode, input kind) to the price of one request in accounting units.
type Matrix struct {
	prices map[mode.Mode]map[request.Kind]int
}

// Default returns the matrix the service ships with.
func Default() Matrix {
	return Matrix{prices: map[mode.Mode]map[request.Kind]int{
		mode.Basic:      {request.Text: 1, request.Document: 3, request.Image: 3},
		mode.Advanced:   {request.Text: 2, request.Document: 9, request.Image: 9},
		mode.SearchOnly: {request.Text: 0, request.Document: 1, request.Image: 1},
	}}
}

// New builds a matrix from configuration. Cells missing from prices keep their default.
// Keys are mode and kind names; negative prices are rejected.
func New(prices map[string]map[string]int) (Matrix, error) {
	m := Default()
	for ms, row := range prices {
		md := mode.Mode(ms)
		if !md.IsValid() {
			return Matrix{}, fmt.Errorf("cost: unknown mode %q", ms)
		}
		for ks, price := range row {
			k := request.Kind(ks)
			if !k.IsValid() {
				return Matrix{}, fmt.Errorf("cost: unknown input kind %q", ks)
			}
			if price < 0 {
				return Matrix{}, fmt.Errorf("cost: negative price for %s/%s", ms, ks)
			}
			m.prices[md][k] = price
		}
	}
	return m, nil
}

// Of returns the price of a request. Unknown combinations return an error.
func (m Matrix) Of(md mode.Mode, k request.Kind) (int, error) {
	row, ok := m.prices[md]
	if !ok {
		return 0, fmt.Errorf("cost: unknown mode %q", md)
	}
	price, ok := row[k]
	if !ok {
		return 0, fmt.Errorf("cost: unknown input kind %q", k)
	}
	return price, nil
}
