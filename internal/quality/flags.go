package quality

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
)

// Flag classifies one value of one reading.
type Flag uint8

const (
	OK Flag = iota
	Missing
	Outlier
	// Undeterminable marks present values of a metric with too few values to judge.
	Undeterminable
)

func (f Flag) String() string {
	switch f {
	case OK:
		return "ok"
	case Missing:
		return "missing"
	case Outlier:
		return "outlier"
	case Undeterminable:
		return "undeterminable"
	default:
		return fmt.Sprintf("flag(%d)", uint8(f))
	}
}

// Valid reports whether a value with this flag may feed statistics.
func (f Flag) Valid() bool { return f == OK || f == Undeterminable }

// FlagTable holds the flags of one filter run, keyed by metric and reading ID.
type FlagTable struct {
	metrics []string
	ids     []int
	pos     map[int]int
	flags   map[string][]Flag
}

func newFlagTable(ids []int) *FlagTable {
	pos := make(map[int]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	return &FlagTable{ids: ids, pos: pos, flags: map[string][]Flag{}}
}

func key(metric string) string { return strings.ToLower(model.CanonicalMetric(metric)) }

func (t *FlagTable) set(metric string, flags []Flag) {
	if _, ok := t.flags[key(metric)]; !ok {
		t.metrics = append(t.metrics, metric)
	}
	t.flags[key(metric)] = flags
}

// Metrics lists the filtered metrics in request order.
func (t *FlagTable) Metrics() []string { return append([]string(nil), t.metrics...) }

// Get returns the flag of a reading's metric value. ok is false for unknown keys.
func (t *FlagTable) Get(readingID int, metric string) (Flag, bool) {
	fs, ok := t.flags[key(metric)]
	if !ok {
		return OK, false
	}
	i, ok := t.pos[readingID]
	if !ok {
		return OK, false
	}
	return fs[i], true
}

// Count returns how many readings carry flag f for metric.
func (t *FlagTable) Count(metric string, f Flag) int {
	n := 0
	for _, x := range t.flags[key(metric)] {
		if x == f {
			n++
		}
	}
	return n
}

// Len is the number of readings the table covers.
func (t *FlagTable) Len() int { return len(t.ids) }

// Flagged returns reading IDs whose metric carries flag f, in input order.
func (t *FlagTable) Flagged(metric string, f Flag) []int {
	var out []int
	for i, x := range t.flags[key(metric)] {
		if x == f {
			out = append(out, t.ids[i])
		}
	}
	return out
}
