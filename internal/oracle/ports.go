// Package oracle defines the contracts of the external generative-AI
// service and how its API key is obtained.
package oracle

import "context"

// Ports for the generative-AI adapters.
type (
	// TextGenerator answers a free-form prompt with text.
	TextGenerator interface {
		GenerateText(ctx context.Context, prompt string) (string, error)
	}

	// VisionGenerator answers a prompt about an image.
	VisionGenerator interface {
		GenerateFromImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
	}

	// Oracle is implemented by every backend.
	Oracle interface {
		TextGenerator
		VisionGenerator
	}
)
