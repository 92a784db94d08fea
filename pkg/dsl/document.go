// Package dsl loads flow definitions from YAML documents.
//
// A document names its steps, refers to views, inputs and actions registered
// in a Registry, and expresses transitions as expr-lang expressions
// evaluated over the step output and the runner's data:
//
//	name: checkout
//	start: cart
//	steps:
//	  cart:
//	    view: cart-view
//	    next: 'output == "pay" ? "payment" : ""'
//	  payment:
//	    kind: action
//	    action: charge
//	    store: receipt
//	    next: '"receipt"'
//	    busy: {mode: fallback, view: spinner}
//	  receipt:
//	    view: receipt-view
//	    input_expr: domain.receipt
package dsl

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	KindRender = "render"
	KindAction = "action"
)

var validate = validator.New()

// Document is the YAML form of a flow definition.
type Document struct {
	Name     string               `yaml:"name" validate:"required"`
	Start    string               `yaml:"start" validate:"required"`
	Internal map[string]any       `yaml:"internal"`
	Steps    map[string]*StepSpec `yaml:"steps" validate:"required,min=1,dive,required"`
	// Channels maps a channel key to a transition expression.
	Channels map[string]string `yaml:"channels"`
}

// StepSpec is one step of a Document.
type StepSpec struct {
	Kind string `yaml:"kind" default:"render" validate:"oneof=render action"`

	View      string `yaml:"view"`
	Input     string `yaml:"input"`
	InputExpr string `yaml:"input_expr"`

	Action string         `yaml:"action"`
	Script string         `yaml:"script"`
	Params map[string]any `yaml:"params"`

	// Store saves the step output in domain data under this key before
	// Next is evaluated.
	Store string `yaml:"store"`
	Next  string `yaml:"next"`

	Busy  BusySpec   `yaml:"busy"`
	Retry *RetrySpec `yaml:"retry"`
}

// BusySpec is the busy-render policy of an action step.
type BusySpec struct {
	Mode string `yaml:"mode" default:"none" validate:"oneof=none preservePrevious fallback"`
	View string `yaml:"view" validate:"required_if=Mode fallback"`
}

// RetrySpec is the retry policy of an action step.
type RetrySpec struct {
	MaxAttempts    int           `yaml:"max_attempts" default:"1" validate:"min=1"`
	InitialBackoff time.Duration `yaml:"initial_backoff" validate:"min=0"`
	MaxBackoff     time.Duration `yaml:"max_backoff" validate:"min=0"`
	Multiplier     float64       `yaml:"multiplier" default:"2" validate:"gte=0"`
}

// Parse decodes a YAML document, applies defaults and validates it.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse flow document: %w", err)
	}
	if err := prepare(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads and parses the document at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func prepare(doc *Document) error {
	if err := defaults.Set(doc); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	for name, step := range doc.Steps {
		if step == nil {
			continue
		}
		if err := defaults.Set(step); err != nil {
			return fmt.Errorf("step %q: apply defaults: %w", name, err)
		}
	}

	if err := validate.Struct(doc); err != nil {
		return formatValidation(err)
	}
	return nil
}

func formatValidation(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("flow document validation failed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed validation (rule: %s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("flow document validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
