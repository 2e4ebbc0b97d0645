// Package clipboard copies transcripts to the system clipboard.
package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// Writer abstracts the system clipboard for tests.
type Writer interface {
	Copy(text string) error
}

// System writes to the real clipboard.
type System struct{}

func (System) Copy(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}
