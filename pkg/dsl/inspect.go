package dsl

import (
	"sort"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// StepReport describes one step of a document.
type StepReport struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	// Targets are the step names the step's next expression can produce,
	// as far as they appear as string literals.
	Targets []string `json:"targets"`
}

// Report is a static overview of a document. It is advisory: targets are
// only known for literal step names.
type Report struct {
	Name        string              `json:"name"`
	Start       string              `json:"start"`
	Steps       []StepReport        `json:"steps"`
	Channels    map[string][]string `json:"channels"`
	Unreachable []string            `json:"unreachable"`
}

// Inspect builds a Report for d.
func (d *Document) Inspect() Report {
	rep := Report{Name: d.Name, Start: d.Start, Channels: make(map[string][]string)}

	edges := make(map[string][]string)
	names := make([]string, 0, len(d.Steps))
	for name := range d.Steps {
		names = append(names, name)
	}
	sort.Strings(names)

	var fromChannels []string
	for key, source := range d.Channels {
		targets := d.literalTargets(source)
		rep.Channels[key] = targets
		fromChannels = append(fromChannels, targets...)
	}

	for _, name := range names {
		spec := d.Steps[name]
		targets := d.literalTargets(spec.Next)
		edges[name] = targets
		rep.Steps = append(rep.Steps, StepReport{Name: name, Kind: spec.Kind, Targets: targets})
	}

	reached := map[string]bool{}
	queue := append([]string{d.Start}, fromChannels...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if reached[cur] {
			continue
		}
		reached[cur] = true
		queue = append(queue, edges[cur]...)
	}
	for _, name := range names {
		if !reached[name] {
			rep.Unreachable = append(rep.Unreachable, name)
		}
	}
	return rep
}

type literalCollector struct {
	values []string
}

func (c *literalCollector) Visit(node *ast.Node) {
	if s, ok := (*node).(*ast.StringNode); ok {
		c.values = append(c.values, s.Value)
	}
}

// literalTargets returns the sorted string literals of source that name a
// step of d.
func (d *Document) literalTargets(source string) []string {
	if source == "" {
		return nil
	}
	tree, err := parser.Parse(source)
	if err != nil {
		return nil
	}
	var c literalCollector
	ast.Walk(&tree.Node, &c)

	seen := map[string]bool{}
	var out []string
	for _, v := range c.values {
		if _, ok := d.Steps[v]; ok && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
