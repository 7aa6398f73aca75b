// Package ocr defines the port toward the text-recognition collaborator.
package ocr

import "context"

// Recognizer converts a receipt photo into raw text. An empty string with a
// nil error means the image contained no recognizable text.
type Recognizer interface {
	RecognizeText(ctx context.Context, image []byte) (string, error)
}
