// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

// Progress receives progress updates while members are copied into the
// container. Implementations are purely observational.
type Progress interface {
	// Start is called once with the count-ahead total, which is zero if counting failed.
	Start(total int)

	// Increment is called after every successfully copied member.
	Increment()

	// Finish is called once when population ends, also on failure.
	Finish()
}

// noopProgress discards all progress updates
type noopProgress struct{}

func (noopProgress) Start(int)  {}
func (noopProgress) Increment() {}
func (noopProgress) Finish()    {}
