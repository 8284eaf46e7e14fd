package machine

import (
	"errors"
	"fmt"

	"github.com/sarchlab/mmusim/vm"
)

var (
	// ErrInvalidEntryIndex is returned when a page-table slot index is not
	// in [0, 512).
	ErrInvalidEntryIndex = errors.New("page table entry index out of range")

	// ErrMisalignedTable is returned when a page-table location is not the
	// first byte of a frame.
	ErrMisalignedTable = errors.New("page table location is not frame aligned")
)

// A PageFault is returned when the page walk meets an entry that is not
// present. It does not change the state of the machine.
type PageFault struct {
	VAddr vm.VirtAddr

	// Level is the walk level, 1 to 4, whose entry is not present.
	Level int
}

func (f *PageFault) Error() string {
	if f.Level < 1 || f.Level > vm.NumLevels {
		return fmt.Sprintf("page fault at %s", f.VAddr)
	}

	return fmt.Sprintf("page fault at %s: level %d entry %03d not present",
		f.VAddr, f.Level, f.VAddr.LevelIndex(f.Level))
}

// IsPageFault tells if err is, or wraps, a PageFault.
func IsPageFault(err error) bool {
	var fault *PageFault
	return errors.As(err, &fault)
}
