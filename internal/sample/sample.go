// Package sample generates synthetic country datasets for demos and tests.
package sample

import (
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
)

// Columns are the generated columns, in order.
var Columns = []string{model.GHI, model.DNI, model.DHI, model.Tamb, "WS", "RH"}

// Start is the timestamp of the first generated reading; readings are one minute apart.
var Start = time.Date(2021, 8, 9, 0, 0, 0, 0, time.UTC)

type normal struct {
	mean, sigma float64
	// jitter shifts the mean per country by an integer in [-jitter, jitter).
	jitter int
}

var normals = []normal{
	{500, 100, 50},
	{600, 150, 50},
	{300, 80, 50},
	{25, 5, 5},
	{3, 1, 0},
	{60, 15, 0},
}

// Generate draws n readings for c from per-column normal distributions. The same seed and
// country always give the same dataset.
func Generate(c model.Country, n int, seed uint64) (*model.Dataset, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sample: n must be > 0, got %d", n)
	}
	src := rand.NewPCG(seed, countrySalt(c))
	rng := rand.New(src)
	dists := make([]distuv.Normal, len(normals))
	for i, s := range normals {
		mu := s.mean
		if s.jitter > 0 {
			mu += float64(rng.IntN(2*s.jitter) - s.jitter)
		}
		dists[i] = distuv.Normal{Mu: mu, Sigma: s.sigma, Src: src}
	}
	rs := make([]model.Reading, n)
	for i := range rs {
		vals := make([]model.Value, len(dists))
		for j := range dists {
			vals[j] = model.Some(dists[j].Rand())
		}
		rs[i] = model.Reading{ID: i, Timestamp: Start.Add(time.Duration(i) * time.Minute), Values: vals}
	}
	return model.NewDataset(c, "sample:"+c.String(), Columns, rs)
}

// All generates one dataset per country with the same seed.
func All(countries []model.Country, n int, seed uint64) ([]*model.Dataset, error) {
	out := make([]*model.Dataset, 0, len(countries))
	for _, c := range countries {
		ds, err := Generate(c, n, seed)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

func countrySalt(c model.Country) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(c); i++ {
		h ^= uint64(c[i])
		h *= 1099511628211
	}
	return h
}
