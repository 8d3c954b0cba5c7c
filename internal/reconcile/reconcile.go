// Package reconcile provides pure set operations over track ID
// collections: de-duplicated appends, common-track splitting and fair
// interleaving. No I/O happens here.
package reconcile

import (
	"slices"
)

// NonDuplicatedAppend returns the elements of incoming that are not
// present in existing. The result is a set: duplicates within incoming
// collapse and ordering is unspecified.
func NonDuplicatedAppend(existing, incoming []string) []string {
	have := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		have[id] = struct{}{}
	}

	missing := make(map[string]struct{})
	for _, id := range incoming {
		if _, ok := have[id]; !ok {
			missing[id] = struct{}{}
		}
	}

	out := make([]string, 0, len(missing))
	for id := range missing {
		out = append(out, id)
	}
	return out
}

// SplitUnique removes the tracks common to both lists, assigning each
// common track to exactly one side by strict alternation: the 1st common
// track (by order of discovery scanning listA left to right) is removed
// from A, the 2nd from B, the 3rd from A, and so on. The alternation
// spreads shared tracks roughly evenly between the two unique sets.
func SplitUnique(listA, listB []string) (uniqueA, uniqueB []string) {
	uniqueA = slices.Clone(listA)
	uniqueB = slices.Clone(listB)

	// Common occurrences are collected against the original lists
	// before any removal, one entry per occurrence in listA.
	var common []string
	for _, id := range listA {
		if slices.Contains(listB, id) {
			common = append(common, id)
		}
	}

	for i, id := range common {
		if i%2 == 0 {
			uniqueA = removeFirst(uniqueA, id)
		} else {
			uniqueB = removeFirst(uniqueB, id)
		}
	}

	return uniqueA, uniqueB
}

// Interleave zips the two lists pairwise up to the shorter length,
// producing [A0, B0, A1, B1, ...]. Elements beyond the shorter length
// are dropped; callers pad the result themselves if they need more.
func Interleave(listA, listB []string) []string {
	n := min(len(listA), len(listB))
	out := make([]string, 0, 2*n)
	for i := 0; i < n; i++ {
		out = append(out, listA[i], listB[i])
	}
	return out
}

func removeFirst(s []string, v string) []string {
	if i := slices.Index(s, v); i >= 0 {
		return slices.Delete(s, i, i+1)
	}
	return s
}
