// Package vision implements the OCR port on the Google Cloud Vision API.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sakkabuar/bilix-bot/internal/ocr"

	goption "google.golang.org/api/option"
	gvision "google.golang.org/api/vision/v1"
)

type Client struct {
	svc *gvision.Service
}

var _ ocr.Recognizer = (*Client)(nil)

// NewFromEnv creates a Vision client using service account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS. These are the same variables the sheets
// adapter reads, so one service account serves both.
func NewFromEnv(ctx context.Context) (*Client, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials for vision")
	}

	svc, err := gvision.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gvision.CloudVisionScope))
	if err != nil {
		return nil, fmt.Errorf("create vision service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// RecognizeText runs TEXT_DETECTION over the image and returns the full
// recognized text, empty when the service found none.
func (c *Client) RecognizeText(ctx context.Context, image []byte) (string, error) {
	req := &gvision.BatchAnnotateImagesRequest{
		Requests: []*gvision.AnnotateImageRequest{{
			Image:    &gvision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*gvision.Feature{{Type: "TEXT_DETECTION"}},
		}},
	}

	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("annotate image: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}

	r := resp.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("vision error: %s", r.Error.Message)
	}
	if r.FullTextAnnotation != nil && r.FullTextAnnotation.Text != "" {
		return r.FullTextAnnotation.Text, nil
	}
	if len(r.TextAnnotations) > 0 {
		return r.TextAnnotations[0].Description, nil
	}
	return "", nil
}
