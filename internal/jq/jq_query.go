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
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"

	"github.com/itchyny/gojq"
	jsoniter "github.com/json-iterator/go"
)

// Query is a compiled jq query. Instances are created with the Compile method of the Tool type, and can be evaluated
// multiple times, also concurrently.
type Query struct {
	logger    *slog.Logger
	source    string
	variables []string
	code      *gojq.Code
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Source returns the text of the query.
func (q *Query) Source() string {
	return q.source
}

// Evaluate evaluates the query on the given input. The output should be a pointer to a variable where the result will
// be stored. If it points to a slice all the results are stored, otherwise only the first one. The variables must be
// the ones given when the query was compiled, in any order.
func (q *Query) Evaluate(ctx context.Context, input any, output any, variables ...Variable) error {
	sorted := slices.Clone(variables)
	slices.SortFunc(sorted, func(a, b Variable) int {
		return strings.Compare(a.name, b.name)
	})
	names := make([]string, len(sorted))
	values := make([]any, len(sorted))
	for i, variable := range sorted {
		names[i] = variable.name
		values[i] = variable.value
	}
	if !slices.Equal(names, q.variables) {
		return fmt.Errorf(
			"query was compiled with variables %v but used with %v",
			q.variables, names,
		)
	}
	return q.evaluate(ctx, input, output, values)
}

func (q *Query) evaluate(ctx context.Context, input any, output any, variables []any) error {
	// Check that the output is a pointer:
	outputType := reflect.TypeOf(output)
	if outputType == nil || outputType.Kind() != reflect.Pointer {
		return fmt.Errorf("output should be a pointer, but it is of type '%T'", output)
	}

	// The library only accepts maps, slices and primitive values, so anything else, like structs or typed maps, is
	// first converted to that form using a JSON round trip:
	var tmp any
	err := q.clone(input, &tmp)
	if err != nil {
		return err
	}

	// Run the query:
	var results []any
	iter := q.code.RunWithContext(ctx, tmp, variables...)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		err, ok = result.(error)
		if ok {
			return fmt.Errorf("failed to evaluate query '%s': %w", q.source, err)
		}
		results = append(results, result)
	}
	q.logger.Debug(
		"Evaluated query",
		slog.String("query", q.source),
		slog.Int("results", len(results)),
	)

	// If the output isn't a slice then we take only the first result:
	var result any
	if outputType.Elem().Kind() == reflect.Slice {
		if results == nil {
			results = []any{}
		}
		result = results
	} else {
		length := len(results)
		if length == 0 {
			return fmt.Errorf("query '%s' produced no results", q.source)
		}
		if length > 1 {
			q.logger.Warn(
				"Query produced multiple results but output type isn't a slice, "+
					"will return the first result",
				slog.String("query", q.source),
				slog.String("type", fmt.Sprintf("%T", output)),
				slog.Int("results", length),
			)
		}
		result = results[0]
	}

	// Copy the result to the output:
	return q.clone(result, output)
}

func (q *Query) clone(input any, output any) error {
	data, err := jsonAPI.Marshal(input)
	if err != nil {
		return err
	}
	return jsonAPI.Unmarshal(data, output)
}
