package nodes

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gyaneshwarpardhi/nodeflow/internal/expr"
	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}\}`)

// renderTemplate fills {{name}} placeholders in data.template. A bare name
// reads the input port of that id; dotted names resolve like condition
// paths (inputs.x, data.y). Unknown names render empty.
func renderTemplate(_ context.Context, inv *nodetype.Invocation) (*nodetype.Result, error) {
	tmpl, ok := inv.Node.Data["template"].(string)
	if !ok {
		return nil, errors.New("template: data.template is required")
	}
	scope := expr.MapScope{"inputs": inv.Inputs, "data": inv.Node.Data}
	text := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		var (
			v     any
			found bool
		)
		if strings.Contains(name, ".") {
			v, found = scope.Lookup(strings.Split(name, "."))
		} else {
			v, found = inv.Inputs[name]
		}
		if !found || v == nil || nodetype.IsSignal(v) {
			return ""
		}
		return fmt.Sprint(v)
	})
	ports := []graph.Port{{ID: PortText, Type: graph.PortTypeString}, flowOut}
	return emits(inv, ports, map[string]any{PortText: text}), nil
}
