package vision

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/vbonduro/interop/internal/domain"
)

// AnalysisPrompt is the shared prompt used by all vision adapters.
var AnalysisPrompt = fmt.Sprintf(`This is an aerial photo of a ground target made of a colored shape with a
painted letter or digit. Describe it with one line per attribute, format:
field: value
Fields: shape, background_color, alphanumeric, alphanumeric_color, orientation.
Allowed shapes: %s.
Allowed colors: %s.
Allowed orientations (direction the top of the character points): %s.
Omit any field you cannot determine.`,
	strings.Join(domain.ShapeNames(), ", "),
	strings.Join(domain.ColorNames(), ", "),
	strings.Join(domain.OrientationNames(), ", "),
)

type VisionAnalyzer interface {
	Analyze(ctx context.Context, r io.Reader, mimeType string) (*AnalysisResult, error)
}

// AnalysisResult holds the attribute values the model reported, keyed by
// request field name. Values are unvalidated.
type AnalysisResult struct {
	Fields      map[string]string
	RawResponse string
}
