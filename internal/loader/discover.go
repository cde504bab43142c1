package loader

import (
	"os"
	"path/filepath"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
)

var discoverSuffixes = []string{
	"_clean.csv", "_clean.csv.gz", "_clean.csv.zst", "_clean.tsv", "_clean.xlsx",
	".csv", ".csv.gz", ".csv.zst", ".tsv", ".xlsx",
}

// Discover looks for a data file per country in dir. Cleaned files are preferred over raw
// ones; countries without a file are absent from the returned map.
func Discover(dir string, countries []model.Country) map[model.Country]string {
	out := make(map[model.Country]string, len(countries))
	for _, c := range countries {
		if p := findCountryFile(dir, c); p != "" {
			out[c] = p
		}
	}
	return out
}

func findCountryFile(dir string, c model.Country) string {
	stems := append(c.FileStems(), string(c))
	for _, suffix := range discoverSuffixes {
		for _, stem := range stems {
			p := filepath.Join(dir, stem+suffix)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p
			}
		}
	}
	return ""
}
