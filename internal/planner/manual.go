package planner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// ErrInputClosed is returned when the operator's input ends before a decision.
var ErrInputClosed = errors.New("manual planner input closed")

// Manual lets an operator drive exploration from a terminal. Each line is
// one of: tap X Y | input X Y TEXT... | scroll [up|down] | back | finish,
// optionally followed by "# notes".
type Manual struct {
	in  *bufio.Reader
	out io.Writer
}

var _ schemas.Planner = (*Manual)(nil)

func NewManual(in io.Reader, out io.Writer) *Manual {
	return &Manual{in: bufio.NewReader(in), out: out}
}

func (m *Manual) Decide(ctx context.Context, pctx schemas.PlannerContext) (schemas.Decision, error) {
	fmt.Fprintln(m.out, "------------------------------")
	fmt.Fprintf(m.out, "Step %d\nIntent: %s\nLast screenshot: %s\nSteps so far: %d\n",
		pctx.StepIndex, pctx.Intent, pctx.LastScreenshotPath, len(pctx.History))
	for _, el := range pctx.Elements {
		fmt.Fprintf(m.out, "  [%s] %s %q at (%.0f,%.0f %.0fx%.0f)\n",
			el.ID, el.Role, el.Label, el.Bounds.X, el.Bounds.Y, el.Bounds.W, el.Bounds.H)
	}

	for {
		fmt.Fprint(m.out, "Next action (tap X Y | input X Y TEXT | scroll up|down | back | finish): ")
		line, err := m.readLine(ctx)
		if err != nil {
			return schemas.Decision{}, err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		d, err := ParseManualCommand(line)
		if err != nil {
			fmt.Fprintf(m.out, "%v\n", err)
			continue
		}
		return d, nil
	}
}

func (m *Manual) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := m.in.ReadString('\n')
		done <- result{line, err}
	}()
	select {
	case r := <-done:
		if r.err == io.EOF {
			if r.line == "" {
				return "", ErrInputClosed
			}
			return r.line, nil
		}
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ParseManualCommand turns one operator line into a decision.
func ParseManualCommand(line string) (schemas.Decision, error) {
	var notes string
	if i := strings.Index(line, "#"); i >= 0 {
		notes = strings.TrimSpace(line[i+1:])
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return schemas.Decision{}, fmt.Errorf("empty command")
	}

	d := schemas.Decision{Action: schemas.ActionKind(strings.ToLower(fields[0])), Notes: notes}
	args := fields[1:]
	switch d.Action {
	case schemas.ActionFinish, schemas.ActionBack:
		return d, nil
	case schemas.ActionScroll:
		dir := schemas.ScrollDown
		if len(args) > 0 && strings.EqualFold(args[0], string(schemas.ScrollUp)) {
			dir = schemas.ScrollUp
		}
		d.Target = &schemas.ActionTarget{Direction: dir}
		return d, nil
	case schemas.ActionTap, schemas.ActionInput:
		if len(args) < 2 {
			return schemas.Decision{}, fmt.Errorf("%s needs X and Y", d.Action)
		}
		x, errX := strconv.ParseFloat(args[0], 64)
		y, errY := strconv.ParseFloat(args[1], 64)
		if errX != nil || errY != nil {
			return schemas.Decision{}, fmt.Errorf("X and Y must be numbers")
		}
		d.Target = schemas.Point(x, y)
		if d.Action == schemas.ActionInput {
			text := strings.Join(args[2:], " ")
			d.InputText = &text
		}
		return d, nil
	default:
		return schemas.Decision{}, fmt.Errorf("unknown action %q", fields[0])
	}
}
