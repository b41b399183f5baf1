// Package evaluation scores retrieval output against known relevant chunk ids.
package evaluation

// PrecisionAtK is the number of relevant ids in the first k retrieved, divided by k.
func PrecisionAtK(retrieved []string, relevant map[string]struct{}, k int) float64 {
	if k <= 0 || len(retrieved) == 0 {
		return 0
	}
	return float64(hits(retrieved, relevant, k)) / float64(k)
}

// RecallAtK is the number of relevant ids in the first k retrieved, divided
// by the number of relevant ids.
func RecallAtK(retrieved []string, relevant map[string]struct{}, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0
	}
	return float64(hits(retrieved, relevant, k)) / float64(len(relevant))
}

func hits(retrieved []string, relevant map[string]struct{}, k int) int {
	if k > len(retrieved) {
		k = len(retrieved)
	}
	n := 0
	for _, id := range retrieved[:k] {
		if _, ok := relevant[id]; ok {
			n++
		}
	}
	return n
}

// Set builds a relevance set from ids.
func Set(ids ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}
