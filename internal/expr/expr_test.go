package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scope() MapScope {
	return MapScope{
		"inputs": map[string]any{
			"score": 0.72,
			"count": 3,
			"name":  "Quarterly report (draft)",
			"tags":  []any{"finance", "q3"},
			"user":  map[string]any{"tier": "gold", "active": true},
			"empty": "",
		},
		"data": map[string]any{"threshold": float64(0.5), "label": "report"},
	}
}

func TestEval(t *testing.T) {
	cases := []struct {
		name    string
		expr    string
		want    bool
		wantErr bool
	}{
		{name: "number gt", expr: "inputs.score > 0.5", want: true},
		{name: "path vs path", expr: "inputs.score >= data.threshold", want: true},
		{name: "int vs float eq", expr: "inputs.count == 3", want: true},
		{name: "lte false", expr: "inputs.count <= 2", want: false},
		{name: "string eq", expr: `inputs.user.tier == "gold"`, want: true},
		{name: "single quotes", expr: `inputs.user.tier != 'silver'`, want: true},
		{name: "bool literal", expr: "inputs.user.active == true", want: true},
		{name: "string ordering", expr: `data.label < "zebra"`, want: true},
		{name: "substring", expr: `inputs.name contains "draft"`, want: true},
		{name: "list membership", expr: `inputs.tags contains "q3"`, want: true},
		{name: "list miss", expr: `inputs.tags contains "q4"`, want: false},
		{name: "regex", expr: `inputs.name matches "^Quarterly"`, want: true},
		{name: "and short circuit", expr: "inputs.count > 5 AND inputs.missing > 1", want: false},
		{name: "or short circuit", expr: "inputs.count > 1 or inputs.missing > 1", want: true},
		{name: "not", expr: `NOT inputs.name contains "final"`, want: true},
		{name: "parens", expr: `(inputs.count == 1 OR inputs.count == 3) AND data.label == "report"`, want: true},
		{name: "truthy path", expr: "inputs.user.active", want: true},
		{name: "falsy empty string", expr: "inputs.empty", want: false},
		{name: "missing path is falsy", expr: "inputs.nothing", want: false},
		{name: "missing equals null", expr: "inputs.nothing == null", want: true},
		{name: "negative literal", expr: "inputs.count > -1", want: true},

		{name: "missing field in ordering", expr: "inputs.nothing > 1", wantErr: true},
		{name: "ordering mixed types", expr: `inputs.count > "a"`, wantErr: true},
		{name: "bad regex", expr: `inputs.name matches "("`, wantErr: true},
		{name: "contains on number", expr: `inputs.count contains 1`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Eval(tc.expr, scope())
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"inputs.a ==",
		"(inputs.a == 1",
		`inputs.a == "open`,
		"inputs.a = 1",
		"inputs.a == 1 inputs.b",
		"inputs..a",
		"inputs.a # 1",
	} {
		_, err := Parse(src)
		assert.Error(t, err, src)
	}
}

func TestProgramReuse(t *testing.T) {
	p, err := Compile(`inputs.name matches "^[a-z]+$"`)
	require.NoError(t, err)
	assert.Equal(t, `inputs.name matches "^[a-z]+$"`, p.String())

	for name, want := range map[string]bool{"alpha": true, "Beta": false, "gamma": true} {
		got, err := p.Eval(MapScope{"inputs": map[string]any{"name": name}})
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	assert.Len(t, p.regexps, 1)
}
