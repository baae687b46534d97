package processing

// DefaultMaxRunes caps the length of texts fed into Ratio. The cap is
// applied to both sides before comparison, so pathological inputs cost
// a bounded amount of work and the result stays deterministic.
const DefaultMaxRunes = 1500

// Ratio computes a Ratcliff/Obershelp similarity in [0,1] between two
// normalized texts: twice the total length of matching blocks over the
// combined length. It is symmetric, returns 1 for identical non-empty
// inputs and 0 when either side is empty.
func Ratio(a, b string) float64 {
	return RatioCapped(a, b, DefaultMaxRunes)
}

// RatioCapped is Ratio with an explicit rune cap. maxRunes <= 0 means
// no cap.
func RatioCapped(a, b string, maxRunes int) float64 {
	if a == "" || b == "" {
		return 0
	}

	ra := truncateRunes([]rune(a), maxRunes)
	rb := truncateRunes([]rune(b), maxRunes)

	// Canonical argument order: the tie-break in longestMatch picks the
	// earliest offsets, which can split the remainder differently when
	// the sides swap. Fixing the order makes Ratio(a,b) == Ratio(b,a).
	if string(ra) > string(rb) {
		ra, rb = rb, ra
	}

	total := len(ra) + len(rb)
	if total == 0 {
		return 0
	}

	matched := matchingLen(ra, rb)
	return 2 * float64(matched) / float64(total)
}

func truncateRunes(r []rune, max int) []rune {
	if max > 0 && len(r) > max {
		return r[:max]
	}
	return r
}

// matchingLen sums the lengths of all matching blocks: the longest
// common substring, then recursively the pieces to its left and right.
func matchingLen(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}

	return size +
		matchingLen(a[:ai], b[:bi]) +
		matchingLen(a[ai+size:], b[bi+size:])
}

// longestMatch finds the longest common substring of a and b, returning
// its start offsets and length. Ties resolve to the earliest position
// in a, then in b, so results are deterministic.
func longestMatch(a, b []rune) (ai, bi, size int) {
	// One DP row over b; prev[j] is the run length ending at a[i-1], b[j-1].
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai = i - size
					bi = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}

	return ai, bi, size
}
