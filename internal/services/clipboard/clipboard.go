// Package clipboard persists composed digest documents to the system clipboard.
package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// Copier places a composed digest document on the system clipboard.
type Copier interface {
	Copy(document string) error
}

// Service implements Copier using github.com/atotto/clipboard.
type Service struct{}

// NewService constructs a clipboard service implementation.
func NewService() *Service {
	return &Service{}
}

// Copy writes document to the system clipboard. Unsupported platforms
// surface the underlying library error.
func (service *Service) Copy(document string) error {
	if writeError := clipboard.WriteAll(document); writeError != nil {
		return fmt.Errorf("writing to system clipboard: %w", writeError)
	}
	return nil
}

var _ Copier = (*Service)(nil)
