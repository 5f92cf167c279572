package textmerge

import "github.com/sergi/go-diff/diffmatchpatch"

// Merge applies the base-to-remote change set on top of local and returns
// the result. Hunks that no longer find their context in local are
// dropped, so a conflicting region keeps the local text while
// non-overlapping remote changes still land.
func Merge(base, local, remote string) string {
	if local == base {
		return remote
	}
	if remote == base || remote == local {
		return local
	}
	dmp := diffmatchpatch.New()
	merged, _ := dmp.PatchApply(dmp.PatchMake(base, remote), local)
	return merged
}
