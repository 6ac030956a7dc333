package core

// FindDuplicates returns every value of keyField that appears more than once
// in rows, each reported once, in order of first appearance. Empty values are
// ignored. Rows are not modified.
func FindDuplicates(rows []ImportRow, keyField string) []string {
	counts := make(map[string]int, len(rows))
	var order []string

	for _, row := range rows {
		v := row.Get(keyField)
		if v == "" {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	var dups []string
	for _, v := range order {
		if counts[v] > 1 {
			dups = append(dups, v)
		}
	}
	return dups
}
