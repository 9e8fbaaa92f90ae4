package press

import (
	"fmt"
	"io"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/treepress/internal/cut"
)

// Stats summarizes a run.
type Stats struct {
	// Nodes counts nodes that produced a record of their own.
	Nodes            int
	Direct           int
	SubtreeRefs      int
	TemplateRefs     int
	FieldMaps        int
	EmptyArrays      int
	TemplatesDerived int
	Cuts             map[cut.Kind]int
	Bytes            int

	// Referenced holds the pre-order numbers of nodes encoded as a
	// reference into the history.
	Referenced *roaring.Bitmap
}

func newStats() Stats {
	return Stats{
		Cuts:       make(map[cut.Kind]int),
		Referenced: roaring.New(),
	}
}

// Refs is the number of reference records of either kind.
func (s Stats) Refs() int { return s.SubtreeRefs + s.TemplateRefs }

// Print writes a short human-readable summary.
func (s Stats) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "nodes=%d direct=%d subtree_refs=%d template_refs=%d field_maps=%d empty_arrays=%d templates=%d bytes=%d\n",
		s.Nodes, s.Direct, s.SubtreeRefs, s.TemplateRefs, s.FieldMaps, s.EmptyArrays, s.TemplatesDerived, s.Bytes)
	if err != nil {
		return err
	}
	kinds := make([]cut.Kind, 0, len(s.Cuts))
	for k := range s.Cuts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		if _, err := fmt.Fprintf(w, "  cut %-12s %d\n", k, s.Cuts[k]); err != nil {
			return err
		}
	}
	if s.Referenced != nil && !s.Referenced.IsEmpty() {
		_, err = fmt.Fprintf(w, "  referenced nodes: %d (first %d, last %d)\n",
			s.Referenced.GetCardinality(), s.Referenced.Minimum(), s.Referenced.Maximum())
	}
	return err
}
