package vision

import (
	"context"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// Noop reports an empty screen. It pairs with planners that do not need
// element lists, such as the manual planner.
type Noop struct{}

var _ schemas.Vision = Noop{}

func (Noop) Analyze(context.Context, string) ([]schemas.UIElement, error) {
	return nil, nil
}
