package compare

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
)

// ErrInsufficientData indicates fewer than two countries carry enough valid values to compare.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError reports which countries were usable and why the others were not.
type InsufficientDataError struct {
	Metric   string
	Usable   []model.Country
	Excluded []Exclusion
}

func (e *InsufficientDataError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: comparing %s needs at least %d countries with %d+ valid values, have %d",
		ErrInsufficientData, e.Metric, MinCountries, MinValues, len(e.Usable))
	if len(e.Excluded) > 0 {
		parts := make([]string, len(e.Excluded))
		for i, x := range e.Excluded {
			parts[i] = fmt.Sprintf("%s: %s", x.Country, x.Reason)
		}
		fmt.Fprintf(&b, " (excluded %s)", strings.Join(parts, "; "))
	}
	return b.String()
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }
