package device

import "github.com/cespare/xxhash/v2"

// shingleSize is the substring window used for fingerprint comparison.
// Four characters keeps single-component changes in a composite
// fingerprint (resolution, timezone, language) local to a handful of
// shingles instead of perturbing the whole set.
const shingleSize = 4

// Similarity returns the Jaccard similarity of two composite fingerprint
// strings in [0, 1]. Identical non-empty fingerprints score 1; an empty
// fingerprint on either side scores 0. The comparison is order-insensitive
// over hashed character shingles, so layout shifts caused by a single
// changed component do not cascade into downstream components.
func Similarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	sa := shingles(a)
	sb := shingles(b)

	intersection := 0
	for h := range sa {
		if _, ok := sb[h]; ok {
			intersection++
		}
	}
	union := len(sa) + len(sb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// shingles hashes every length-4 substring of s into a set.
// Strings shorter than the window hash as a single shingle.
func shingles(s string) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(s))
	if len(s) < shingleSize {
		set[xxhash.Sum64String(s)] = struct{}{}
		return set
	}
	for i := 0; i+shingleSize <= len(s); i++ {
		set[xxhash.Sum64String(s[i:i+shingleSize])] = struct{}{}
	}
	return set
}
