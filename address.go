package callident

import (
	"cmp"
	"fmt"
)

// MetaAddress identifies a location in the analyzed binary. It is totally
// ordered and usable as a map key.
type MetaAddress uint64

// Compare returns -1, 0 or +1 depending on whether a is less than, equal to
// or greater than b.
func (a MetaAddress) Compare(b MetaAddress) int {
	return cmp.Compare(a, b)
}

func (a MetaAddress) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}
