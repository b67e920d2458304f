package types

import "fmt"

// ColorMode selects how element colors are overridden.
type ColorMode string

const (
	ColorModeNative                   ColorMode = "native"
	ColorModeLabel                    ColorMode = "label"
	ColorModePrediction               ColorMode = "prediction"
	ColorModeConfusionsWithLabel      ColorMode = "confusions_with_label"
	ColorModeConfusionsWithPrediction ColorMode = "confusions_with_prediction"
)

// IsConfusion reports whether matching true/predicted labels are hidden.
func (m ColorMode) IsConfusion() bool {
	return m == ColorModeConfusionsWithLabel || m == ColorModeConfusionsWithPrediction
}

// ParseColorMode validates a color mode name.
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(s); m {
	case ColorModeNative, ColorModeLabel, ColorModePrediction,
		ColorModeConfusionsWithLabel, ColorModeConfusionsWithPrediction:
		return m, nil
	}
	return "", fmt.Errorf("unknown color mode %q", s)
}
