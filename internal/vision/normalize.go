// Package vision turns the current screen into a list of actionable elements.
package vision

import (
	"fmt"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// normalizeElements coerces roles onto the known set, clamps confidence to
// [0,1], drops elements without area and assigns ids to anonymous ones.
func normalizeElements(in []schemas.UIElement) []schemas.UIElement {
	out := make([]schemas.UIElement, 0, len(in))
	for i, el := range in {
		if el.Bounds.W <= 0 || el.Bounds.H <= 0 {
			continue
		}
		el.Role = schemas.NormalizeRole(string(el.Role))
		el.Confidence = clamp01(el.Confidence)
		if el.ID == "" {
			el.ID = fmt.Sprintf("el-%d", i)
		}
		out = append(out, el)
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
