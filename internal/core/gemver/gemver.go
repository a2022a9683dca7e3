// Package gemver implements the version-ordering rule used throughout the
// registry: versions are split on dots, and each component pair is compared
// numerically when both sides are numeric, lexicographically otherwise.
// "1.10.0" therefore sorts after "1.2.0", unlike a plain string compare.
package gemver

import (
	"sort"
	"strconv"
	"strings"
)

// Compare returns -1, 0, or 1 ordering a against b.
func Compare(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		// A version that runs out of components sorts first.
		if i >= len(as) {
			return -1
		}
		if i >= len(bs) {
			return 1
		}
		if c := compareComponent(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return 0
}

func compareComponent(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

// SortAscending stable-sorts versions in place, lowest first.
func SortAscending(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		return Compare(versions[i], versions[j]) < 0
	})
}

// SortDescending stable-sorts versions in place, highest first.
func SortDescending(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		return Compare(versions[i], versions[j]) > 0
	})
}

// Max returns the highest version in versions, or "" for an empty slice.
// Ties between identical version strings keep the last one encountered.
func Max(versions []string) string {
	max := ""
	for _, v := range versions {
		if max == "" || Compare(v, max) >= 0 {
			max = v
		}
	}
	return max
}
