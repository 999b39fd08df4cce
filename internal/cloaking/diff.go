package cloaking

// diffCounts aligns two line slices with a longest-common-subsequence
// diff and returns how many lines appear only in a and only in b.
func diffCounts(a, b []string) (uniqueA, uniqueB int) {
	// Shared prefix and suffix lines are common by construction;
	// trimming them keeps the quadratic part small for documents
	// that differ in one region.
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	midA := a[prefix : len(a)-suffix]
	midB := b[prefix : len(b)-suffix]

	common := prefix + suffix + lcsLength(midA, midB)
	return len(a) - common, len(b) - common
}

// lcsLength computes the longest-common-subsequence length with a
// two-row dynamic program, so memory stays linear in the shorter
// input.
func lcsLength(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) > len(a) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
