package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{
			name:  "all fields",
			input: "shape: star\nbackground_color: orange\nalphanumeric: C\nalphanumeric_color: black\norientation: NE",
			expected: map[string]string{
				"shape":              "star",
				"background_color":   "orange",
				"alphanumeric":       "C",
				"alphanumeric_color": "black",
				"orientation":        "NE",
			},
		},
		{
			name:     "bullets and spaced keys",
			input:    "- Shape: circle\n* Background Color: \"red\"\n",
			expected: map[string]string{"shape": "circle", "background_color": "red"},
		},
		{
			name:     "chatter is skipped",
			input:    "Here is what I see\n\nshape: square.\nI am not sure about the color",
			expected: map[string]string{"shape": "square"},
		},
		{
			name:     "empty value skipped",
			input:    "shape:\norientation: S",
			expected: map[string]string{"orientation": "S"},
		},
		{
			name:     "later line wins",
			input:    "shape: circle\nshape: semicircle",
			expected: map[string]string{"shape": "semicircle"},
		},
		{
			name:     "empty",
			input:    "",
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseResponse(tt.input))
		})
	}
}

func TestParseLine(t *testing.T) {
	key, value, ok := ParseLine("  Alphanumeric Color : white ")
	assert.True(t, ok)
	assert.Equal(t, "alphanumeric_color", key)
	assert.Equal(t, "white", value)

	_, _, ok = ParseLine("no separator here")
	assert.False(t, ok)
}

func TestAnalysisPromptListsVocabularies(t *testing.T) {
	assert.Contains(t, AnalysisPrompt, "quarter_circle")
	assert.Contains(t, AnalysisPrompt, "purple")
	assert.Contains(t, AnalysisPrompt, "NW")
}
