package explorer

import (
	"fmt"
	"strings"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// stagnationGuard counts consecutive identical screens. Empty analyses never
// count, since a vision strategy that reports nothing says nothing about
// whether the screen changed.
type stagnationGuard struct {
	limit   int
	last    string
	repeats int
}

func newStagnationGuard(limit int) *stagnationGuard {
	return &stagnationGuard{limit: limit}
}

// Stalled records one analysis and reports whether the screen has now been
// unchanged across limit executed steps.
func (g *stagnationGuard) Stalled(elements []schemas.UIElement) bool {
	if g.limit <= 0 {
		return false
	}
	fp := fingerprint(elements)
	if fp == "" {
		g.last, g.repeats = "", 0
		return false
	}
	if fp == g.last {
		g.repeats++
	} else {
		g.last, g.repeats = fp, 0
	}
	return g.repeats >= g.limit
}

// fingerprint ignores ids and confidence, which vary between analyses of the same screen.
func fingerprint(elements []schemas.UIElement) string {
	var b strings.Builder
	for _, el := range elements {
		fmt.Fprintf(&b, "%s|%s|%.0f,%.0f,%.0f,%.0f;", el.Role, el.Label, el.Bounds.X, el.Bounds.Y, el.Bounds.W, el.Bounds.H)
	}
	return b.String()
}
