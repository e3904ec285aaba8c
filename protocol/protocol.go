// Package protocol holds the generic rules for mutating replicated
// collections without losing concurrent edits.
//
// The one rule behind all of them: never replace a replicated container
// wholesale when a narrower edit expresses the same intent. Id lists are
// edited slot by slot, singleton entities are upserted by their natural key,
// shared reference entities are deduplicated by a normalized value.
package protocol

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FindByKey scans ids in order and returns the first record for which match
// is true. Ids whose record is missing (removed by a concurrent peer) are
// skipped.
func FindByKey[T any](ids []string, records map[string]*T, match func(*T) bool) (*T, bool) {
	for _, id := range ids {
		r, ok := records[id]
		if !ok || r == nil {
			continue
		}
		if match(r) {
			return r, true
		}
	}
	return nil, false
}

// FindInMap returns the record with the smallest id for which match is true.
// Used where no owning id list exists (locations, attestations).
func FindInMap[T any](records map[string]*T, match func(*T) bool) (string, *T, bool) {
	var (
		bestID string
		best   *T
	)
	for id, r := range records {
		if r == nil || !match(r) {
			continue
		}
		if best == nil || id < bestID {
			bestID, best = id, r
		}
	}
	return bestID, best, best != nil
}

// AppendID pushes id onto the list unless it is already present.
func AppendID(list *[]string, id string) bool {
	if IndexOf(*list, id) >= 0 {
		return false
	}
	*list = append(*list, id)
	return true
}

// RemoveID excises every slot holding id, leaving all other slots in place.
func RemoveID(list *[]string, id string) bool {
	removed := false
	for {
		i := IndexOf(*list, id)
		if i < 0 {
			return removed
		}
		*list = append((*list)[:i:i], (*list)[i+1:]...)
		removed = true
	}
}

// IndexOf returns the first index of id in list, or -1.
func IndexOf(list []string, id string) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

// DiffIDs computes the minimal edit from old to next: ids to excise and ids
// to push. Both results follow the order of their source list.
func DiffIDs(old, next []string) (toRemove, toAdd []string) {
	inNext := make(map[string]struct{}, len(next))
	for _, id := range next {
		inNext[id] = struct{}{}
	}
	inOld := make(map[string]struct{}, len(old))
	for _, id := range old {
		inOld[id] = struct{}{}
		if _, ok := inNext[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	seen := map[string]struct{}{}
	for _, id := range next {
		if _, ok := inOld[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		toAdd = append(toAdd, id)
	}
	return toRemove, toAdd
}

// ApplyDiff turns list into next with element-wise edits: removals first,
// then pushes. It reports whether the list changed.
func ApplyDiff(list *[]string, next []string) bool {
	toRemove, toAdd := DiffIDs(*list, next)
	for _, id := range toRemove {
		RemoveID(list, id)
	}
	for _, id := range toAdd {
		AppendID(list, id)
	}
	return len(toRemove) > 0 || len(toAdd) > 0
}

// Dedupe returns ids with repeats removed, keeping first occurrences.
func Dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[T any](m map[string]*T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var folder = cases.Fold()

// NormalizeTagName returns the comparison key for a tag name: NFKC
// normalized, case folded, trimmed, with inner whitespace runs collapsed to
// one space. "Budget", " budget " and "BUDGET" share a key.
func NormalizeTagName(name string) string {
	s := norm.NFKC.String(name)
	s = folder.String(s)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// CleanTagName returns the display form of a tag name: trimmed, with inner
// whitespace collapsed, original casing kept.
func CleanTagName(name string) string {
	return strings.Join(strings.FieldsFunc(norm.NFC.String(name), unicode.IsSpace), " ")
}
