package index

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"lukechampine.com/blake3"
)

// StateID fingerprints a scanned tree. Two scans that see the same
// relative paths with the same sizes and mtimes produce the same ID, so
// responses carrying it can be compared across runs.
func StateID(files []File) string {
	sorted := make([]File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RelPath < sorted[j].RelPath })

	var buf bytes.Buffer
	for _, f := range sorted {
		fmt.Fprintf(&buf, "%s\x00%d\x00%d\n", f.RelPath, f.Size, f.MtimeNs)
	}

	sum := blake3.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
