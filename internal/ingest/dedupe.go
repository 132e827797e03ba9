package ingest

import (
	"sort"

	"mediabrief/internal/textutil"
)

// DuplicateKey records how often a normalized hit sentence repeated in the
// input, for diagnostics.
type DuplicateKey struct {
	Key   string
	Count int
}

// DedupeResult carries the retained rows plus counters describing what was
// dropped.
type DedupeResult struct {
	Rows     []Row
	Input    int
	Kept     int
	Removed  int
	EmptyKey int
	// TopDuplicates lists the most repeated keys, highest count first.
	TopDuplicates []DuplicateKey
}

// Dedupe drops rows whose normalized hit sentence already appeared earlier in
// the batch. Rows with an empty normalized key are always retained. Order is
// preserved and the operation is idempotent: running it on its own output
// removes nothing.
func Dedupe(rows []Row, topN int) DedupeResult {
	result := DedupeResult{Input: len(rows)}
	seen := make(map[string]int, len(rows))
	kept := make([]Row, 0, len(rows))

	for _, row := range rows {
		key := textutil.NormalizeKey(row.HitSentence)
		if key == "" {
			result.EmptyKey++
			kept = append(kept, row)
			continue
		}
		seen[key]++
		if seen[key] == 1 {
			kept = append(kept, row)
			continue
		}
		result.Removed++
	}

	result.Rows = kept
	result.Kept = len(kept)
	result.TopDuplicates = topDuplicates(seen, topN)
	return result
}

func topDuplicates(counts map[string]int, topN int) []DuplicateKey {
	if topN <= 0 {
		return nil
	}
	var dupes []DuplicateKey
	for key, count := range counts {
		if count > 1 {
			dupes = append(dupes, DuplicateKey{Key: key, Count: count})
		}
	}
	sort.Slice(dupes, func(i, j int) bool {
		if dupes[i].Count != dupes[j].Count {
			return dupes[i].Count > dupes[j].Count
		}
		return dupes[i].Key < dupes[j].Key
	})
	if len(dupes) > topN {
		dupes = dupes[:topN]
	}
	return dupes
}
