// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// SampleBlock is one block of mono 16-bit PCM samples. A block belongs to
// the cycle that read it and is not modified after the read.
type SampleBlock []int16

// CheckBlock returns a MalformedBlock fault attributed to component when
// len(block) != size.
func CheckBlock(component string, block SampleBlock, size int) error {
	if len(block) == size {
		return nil
	}
	return NewFault(component, ErrMalformedBlock, nil,
		fmt.Sprintf("got %d samples, want %d", len(block), size))
}
