package draw

import (
	"fmt"
	"strings"

	"github.com/sarchlab/mmusim/cache"
	"github.com/sarchlab/mmusim/vm"
	"github.com/sarchlab/mmusim/vm/tlb"
)

// TLB lists the valid entries of each non-empty set, one set per line, as
// [virtual page -> frame, access counter]. An empty TLB is "(empty)".
func TLB(t *tlb.TLB) string {
	var b strings.Builder

	for setID, set := range t.Sets() {
		if set.NumValid() == 0 {
			continue
		}

		first := true
		for _, e := range set.Entries {
			if !e.Valid {
				continue
			}

			if !first {
				b.WriteString(" ")
			}
			first = false

			fmt.Fprintf(&b, "[%s -> %s, %d]", e.VAddr(setID), e.PAddr, e.Access)
		}

		b.WriteString("\n")
	}

	if b.Len() == 0 {
		return "(empty)"
	}

	return b.String()
}

// Cache lists the valid blocks of each non-empty set, one set per line,
// prefixed with the two-digit set index.
func Cache(c *cache.Cache) string {
	var b strings.Builder

	for setID, set := range c.Sets() {
		if !set.HasEntry() {
			continue
		}

		fmt.Fprintf(&b, "%02d:", setID)

		for _, block := range set.Blocks {
			if block.IsValid {
				fmt.Fprintf(&b, " %s", c.BlockPAddr(setID, block))
			}
		}

		b.WriteString("\n")
	}

	return b.String()
}

// TableReader gives access to a tree of page tables.
type TableReader interface {
	CR3() vm.PhysAddr
	ReadTable(loc vm.PhysAddr) (vm.PageTable, error)
}

// PageMap renders the tree of page tables rooted at CR3. Each present entry
// is a line, indented by " | " per level below the root. Entries of the
// leaf level show the virtual page and its frame, other entries show how many
// entries the table they point to has.
func PageMap(r TableReader) (string, error) {
	var b strings.Builder

	err := drawTable(r, &b, 1, r.CR3(), 0)
	if err != nil {
		return "", err
	}

	return b.String(), nil
}

func drawTable(
	r TableReader,
	b *strings.Builder,
	level int,
	tableLoc vm.PhysAddr,
	vBase vm.VirtAddr,
) error {
	table, err := r.ReadTable(tableLoc)
	if err != nil {
		return err
	}

	indent := strings.Repeat(" | ", level-1)
	span := vm.LevelSpan(level)

	for i, entry := range table {
		if !entry.IsPresent() {
			continue
		}

		vAddr := vBase.Add(span * uint64(i))
		target := entry.PhysAddr()

		if level == vm.NumLevels {
			fmt.Fprintf(b, "%s%03d: %s -> %s\n", indent, i, vAddr, target)
			continue
		}

		next, err := r.ReadTable(target)
		if err != nil {
			return err
		}

		fmt.Fprintf(b, "%s%03d: [%d mapped entries]\n",
			indent, i, next.NumPresent())

		err = drawTable(r, b, level+1, target, vAddr)
		if err != nil {
			return err
		}
	}

	return nil
}
