package nodetype

// TokenUsage counts model tokens spent by an invocation.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Diagnostics is the informational side output of an invocation.
type Diagnostics struct {
	Usage    TokenUsage `json:"usage"`
	Thoughts []string   `json:"thoughts,omitempty"`
	// Nodes holds the final state of every internal node of a nested run.
	Nodes map[string]string `json:"nodes,omitempty"`
}

// Merge folds o into d: usage is summed, thoughts are concatenated and
// node states are overlaid.
func (d *Diagnostics) Merge(o *Diagnostics) {
	if o == nil {
		return
	}
	d.Usage.Prompt += o.Usage.Prompt
	d.Usage.Completion += o.Usage.Completion
	d.Usage.Total += o.Usage.Total
	d.Thoughts = append(d.Thoughts, o.Thoughts...)
	if len(o.Nodes) > 0 {
		if d.Nodes == nil {
			d.Nodes = make(map[string]string, len(o.Nodes))
		}
		for k, v := range o.Nodes {
			d.Nodes[k] = v
		}
	}
}
