package defunc

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Phase is the point of a call a TraceEvent describes.
type Phase int

const (
	PhaseEnter Phase = iota
	PhaseExit
)

func (p Phase) String() string {
	if p == PhaseExit {
		return "exit"
	}
	return "enter"
}

// TraceEvent is one enter or exit observation of an intercepted call.
type TraceEvent struct {
	Depth     int
	Phase     Phase
	Type      string
	Scope     Scope
	Operation string

	// Args is set on enter.
	Args []any

	// Result, Err and CountDelta are set on exit.
	Result     any
	Err        error
	CountDelta int
}

// QualifiedName returns Type.op for static operations and Type#op for instance ones.
func (ev TraceEvent) QualifiedName() string {
	sep := "#"
	if ev.Scope == ScopeStatic {
		sep = "."
	}
	return ev.Type + sep + ev.Operation
}

// Line renders the event in trace-line format.
func (ev TraceEvent) Line(qualified bool) string {
	name := ev.Operation
	if qualified {
		name = ev.QualifiedName()
	}

	var b strings.Builder
	b.WriteString(strings.Repeat(" ", max(ev.Depth, 0)))
	b.WriteString(ev.Phase.String())
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(": ")

	if ev.Phase == PhaseEnter {
		b.WriteString(FormatArgs(ev.Args))
		return b.String()
	}

	if ev.Err != nil {
		b.WriteString("error(")
		b.WriteString(FormatValue(ev.Err.Error()))
		b.WriteString(")")
	} else {
		b.WriteString(FormatValue(ev.Result))
	}
	fmt.Fprintf(&b, " (object count has changed by %+d)", ev.CountDelta)
	return b.String()
}

var renderAPI = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// FormatValue renders v the way it appears in trace lines: JSON where
// possible, "nil" for nil, and %v for values JSON cannot encode.
func FormatValue(v any) string {
	if v == nil {
		return "nil"
	}
	out, err := renderAPI.MarshalToString(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	if out == "null" {
		return "nil"
	}
	return out
}

// FormatArgs renders an argument list as [a, b, ...].
func FormatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = FormatValue(arg)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
