package defunc

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	var nilPtr *struct{ A int }

	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: "nil"},
		{name: "typed nil pointer", in: nilPtr, want: "nil"},
		{name: "int", in: 5, want: "5"},
		{name: "string", in: "a", want: `"a"`},
		{name: "html not escaped", in: "<b>", want: `"<b>"`},
		{name: "slice", in: []int{1, 2}, want: "[1,2]"},
		{name: "map sorted", in: map[string]int{"b": 2, "a": 1}, want: `{"a":1,"b":2}`},
		{name: "struct", in: struct {
			Name string `json:"name"`
		}{Name: "dice"}, want: `{"name":"dice"}`},
		{name: "bool", in: true, want: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}

func TestFormatValue_Fallback(t *testing.T) {
	ch := make(chan int)
	out := FormatValue(ch)
	assert.True(t, strings.HasPrefix(out, "0x"), out)
}

func TestFormatArgs(t *testing.T) {
	assert.Equal(t, "[]", FormatArgs(nil))
	assert.Equal(t, `[1, "a"]`, FormatArgs([]any{1, "a"}))
	assert.Equal(t, "[nil, [1]]", FormatArgs([]any{nil, []int{1}}))
}

func TestTraceEvent_Line(t *testing.T) {
	tests := []struct {
		name      string
		ev        TraceEvent
		qualified bool
		want      string
	}{
		{
			name: "enter",
			ev:   TraceEvent{Depth: 2, Phase: PhaseEnter, Type: "Dice", Operation: "roll", Args: []any{6}},
			want: "  enter roll: [6]",
		},
		{
			name: "exit positive delta",
			ev:   TraceEvent{Phase: PhaseExit, Type: "Cup", Operation: "shake", Result: 3, CountDelta: 3},
			want: "exit shake: 3 (object count has changed by +3)",
		},
		{
			name: "exit negative delta",
			ev:   TraceEvent{Depth: 4, Phase: PhaseExit, Type: "Cup", Operation: "empty", CountDelta: -2},
			want: "    exit empty: nil (object count has changed by -2)",
		},
		{
			name: "exit error",
			ev:   TraceEvent{Phase: PhaseExit, Type: "Cup", Operation: "spill", Result: 1, Err: errors.New("wet")},
			want: `exit spill: error("wet") (object count has changed by +0)`,
		},
		{
			name:      "qualified static",
			ev:        TraceEvent{Phase: PhaseEnter, Type: "Random", Scope: ScopeStatic, Operation: "random"},
			qualified: true,
			want:      "enter Random.random: []",
		},
		{
			name:      "qualified instance",
			ev:        TraceEvent{Phase: PhaseEnter, Type: "Dice", Scope: ScopeInstance, Operation: "roll"},
			qualified: true,
			want:      "enter Dice#roll: []",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.Line(tt.qualified))
		})
	}
}

func TestScopeAndPhaseStrings(t *testing.T) {
	assert.Equal(t, "static", ScopeStatic.String())
	assert.Equal(t, "instance", ScopeInstance.String())
	assert.Equal(t, "enter", PhaseEnter.String())
	assert.Equal(t, "exit", PhaseExit.String())
}
