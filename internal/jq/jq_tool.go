/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package jq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/itchyny/gojq"
)

// ToolBuilder contains the data and logic needed to create a tool that compiles and evaluates queries.
type ToolBuilder struct {
	logger *slog.Logger
}

// Tool knows how to compile and evaluate jq queries. It is the mechanism used to filter the output of the command
// line tool, for example to extract only the names of the configured plugins.
type Tool struct {
	logger *slog.Logger
}

// Variable is a named value that can be passed to a query. Inside the query it is referenced with a dollar sign, for
// example '$cluster'.
type Variable struct {
	name  string
	value any
}

// NewTool creates a builder that can then be used to create a jq tool.
func NewTool() *ToolBuilder {
	return &ToolBuilder{}
}

// SetLogger sets the logger. This is mandatory.
func (b *ToolBuilder) SetLogger(value *slog.Logger) *ToolBuilder {
	b.logger = value
	return b
}

// Build uses the data stored in the builder to create a new jq tool.
func (b *ToolBuilder) Build() (result *Tool, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Create and populate the object:
	result = &Tool{
		logger: b.logger,
	}
	return
}

// NewVariable creates a variable with the given name and value. The name may be given with or without the leading
// dollar sign.
func NewVariable(name string, value any) Variable {
	if len(name) > 0 && name[0] == '$' {
		name = name[1:]
	}
	return Variable{
		name:  name,
		value: value,
	}
}

// Compile compiles the given source and returns a query that can then be evaluated multiple times. The names of the
// variables that will be passed to the evaluation must be given here, without the leading dollar sign.
func (t *Tool) Compile(source string, variables ...string) (result *Query, err error) {
	parsed, err := gojq.Parse(source)
	if err != nil {
		err = fmt.Errorf("failed to parse query '%s': %w", source, err)
		return
	}
	names := slices.Clone(variables)
	slices.Sort(names)
	prefixed := make([]string, len(names))
	for i, name := range names {
		prefixed[i] = "$" + name
	}
	code, err := gojq.Compile(parsed, gojq.WithVariables(prefixed))
	if err != nil {
		err = fmt.Errorf("failed to compile query '%s': %w", source, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	result = &Query{
		logger:    t.logger,
		source:    source,
		variables: names,
		code:      code,
	}
	return
}

// Evaluate compiles the source and evaluates it on the given input in one step. It is intended for queries that are
// used only once.
func (t *Tool) Evaluate(ctx context.Context, source string, input any, output any, variables ...Variable) error {
	names := make([]string, len(variables))
	for i, variable := range variables {
		names[i] = variable.name
	}
	query, err := t.Compile(source, names...)
	if err != nil {
		return err
	}
	return query.Evaluate(ctx, input, output, variables...)
}
