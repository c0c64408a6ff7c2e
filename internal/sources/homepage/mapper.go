package homepage

import (
	"sort"
)

// Entries flattens the config into importable entries, in file order.
// Names inside one list item are sorted since YAML maps carry no order.
// Entries without href are kept; the caller's validation decides what to skip.
func Entries(config BookmarksConfig) []Entry {
	entries := make([]Entry, 0)

	for _, category := range config {
		for _, categoryName := range sortedKeys(category) {
			for _, bookmarkMap := range category[categoryName] {
				for _, name := range sortedKeys(bookmarkMap) {
					entryList := bookmarkMap[name]
					if len(entryList) == 0 {
						continue
					}
					entries = append(entries, Entry{
						Category: categoryName,
						Title:    name,
						URL:      entryList[0].Href,
					})
				}
			}
		}
	}

	return entries
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
