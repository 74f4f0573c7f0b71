package vision

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// HierarchySource returns the uiautomator XML dump of the current window.
type HierarchySource interface {
	DumpHierarchy(ctx context.Context) ([]byte, error)
}

// UIAutomator reads elements from the accessibility hierarchy instead of
// the screenshot pixels. Bounds are exact, so confidence is always 1.
type UIAutomator struct {
	logger *zap.Logger
	source HierarchySource
}

var _ schemas.Vision = (*UIAutomator)(nil)

func NewUIAutomator(logger *zap.Logger, source HierarchySource) *UIAutomator {
	return &UIAutomator{logger: logger.Named("vision.uiautomator"), source: source}
}

// Analyze ignores the screenshot reference and dumps the live hierarchy.
func (u *UIAutomator) Analyze(ctx context.Context, screenshot string) ([]schemas.UIElement, error) {
	data, err := u.source.DumpHierarchy(ctx)
	if err != nil {
		return nil, err
	}
	elements, err := ParseHierarchy(data)
	if err != nil {
		return nil, err
	}
	u.logger.Debug("Parsed UI hierarchy", zap.Int("elements", len(elements)), zap.String("screenshot", screenshot))
	return elements, nil
}

var boundsPattern = regexp.MustCompile(`^\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]$`)

// ParseHierarchy extracts labelled or interactive nodes from a uiautomator dump.
func ParseHierarchy(data []byte) ([]schemas.UIElement, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("invalid hierarchy XML: %w", err)
	}

	var elements []schemas.UIElement
	for _, node := range doc.FindElements("//node") {
		bounds, ok := parseBounds(node.SelectAttrValue("bounds", ""))
		if !ok || bounds.W <= 0 || bounds.H <= 0 {
			continue
		}
		class := node.SelectAttrValue("class", "")
		clickable := node.SelectAttrValue("clickable", "false") == "true"
		label := nodeLabel(node)
		role := classify(class, clickable, label)
		if label == "" && role != schemas.RoleInput && !clickable {
			continue
		}

		id := node.SelectAttrValue("resource-id", "")
		if id == "" {
			id = fmt.Sprintf("node-%d", len(elements))
		}
		elements = append(elements, schemas.UIElement{
			ID:         id,
			Label:      label,
			Role:       role,
			Bounds:     bounds,
			Confidence: 1,
		})
	}
	return elements, nil
}

func nodeLabel(node *etree.Element) string {
	for _, attr := range []string{"text", "content-desc", "hint"} {
		if v := strings.TrimSpace(node.SelectAttrValue(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

func classify(class string, clickable bool, label string) schemas.UIRole {
	switch {
	case strings.Contains(class, "EditText"):
		return schemas.RoleInput
	case strings.Contains(class, "Button"), clickable:
		return schemas.RoleButton
	case strings.Contains(class, "Image"):
		return schemas.RoleImage
	case strings.Contains(class, "TextView"), label != "":
		return schemas.RoleText
	default:
		return schemas.RoleUnknown
	}
}

// parseBounds reads "[x1,y1][x2,y2]".
func parseBounds(s string) (schemas.Bounds, bool) {
	m := boundsPattern.FindStringSubmatch(s)
	if m == nil {
		return schemas.Bounds{}, false
	}
	var v [4]float64
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return schemas.Bounds{}, false
		}
		v[i] = float64(n)
	}
	return schemas.Bounds{X: v[0], Y: v[1], W: v[2] - v[0], H: v[3] - v[1]}, true
}
