/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"
	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"

	"github.com/innabox/kubeapps-client/internal/jq"
	"github.com/innabox/kubeapps-client/internal/json"
)

// Format is the format used to write the results of commands.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats returns the list of supported formats.
func Formats() []Format {
	return []Format{
		FormatJSON,
		FormatYAML,
	}
}

// WriterBuilder contains the data and logic needed to create an output writer.
type WriterBuilder struct {
	logger  *slog.Logger
	out     io.Writer
	format  Format
	query   string
	ignored []any
}

// Writer converts protocol buffers messages to generic values, optionally filters them with a jq query, and writes
// them in JSON or YAML format.
type Writer struct {
	logger  *slog.Logger
	out     io.Writer
	format  Format
	encoder *json.Encoder
	query   *jq.Query
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// NewWriter creates a builder that can then be used to configure and create an output writer.
func NewWriter() *WriterBuilder {
	return &WriterBuilder{
		format: FormatJSON,
	}
}

// SetLogger sets the logger. This is mandatory.
func (b *WriterBuilder) SetLogger(value *slog.Logger) *WriterBuilder {
	b.logger = value
	return b
}

// SetOut sets the writer where the results will be written. This is mandatory.
func (b *WriterBuilder) SetOut(value io.Writer) *WriterBuilder {
	b.out = value
	return b
}

// SetFormat sets the output format. The default is JSON.
func (b *WriterBuilder) SetFormat(value Format) *WriterBuilder {
	b.format = value
	return b
}

// SetQuery sets a jq query that will be applied to the results before writing them. This is optional.
func (b *WriterBuilder) SetQuery(value string) *WriterBuilder {
	b.query = value
	return b
}

// AddIgnoredFields adds fields that will be removed from the results. See the json.Encoder type for the accepted
// values.
func (b *WriterBuilder) AddIgnoredFields(values ...any) *WriterBuilder {
	b.ignored = append(b.ignored, values...)
	return b
}

// SetFlags sets the command line flags that should be used to configure the writer. This is optional.
func (b *WriterBuilder) SetFlags(flags *pflag.FlagSet) *WriterBuilder {
	if flags == nil {
		return b
	}
	if flags.Changed(formatFlagName) {
		value, err := flags.GetString(formatFlagName)
		if err == nil {
			b.SetFormat(Format(value))
		}
	}
	if flags.Changed(queryFlagName) {
		value, err := flags.GetString(queryFlagName)
		if err == nil {
			b.SetQuery(value)
		}
	}
	return b
}

// Build uses the data stored in the builder to create a new output writer.
func (b *WriterBuilder) Build() (result *Writer, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.out == nil {
		err = errors.New("output writer is mandatory")
		return
	}
	if !slices.Contains(Formats(), b.format) {
		err = fmt.Errorf(
			"output format '%s' isn't valid, valid values are %v",
			b.format, Formats(),
		)
		return
	}

	// Create the encoder that converts messages to generic values:
	encoder, err := json.NewEncoder().
		SetLogger(b.logger).
		SetJSONNames(true).
		AddIgnoredFields(b.ignored...).
		Build()
	if err != nil {
		return
	}

	// Compile the query:
	var query *jq.Query
	if b.query != "" {
		var tool *jq.Tool
		tool, err = jq.NewTool().
			SetLogger(b.logger).
			Build()
		if err != nil {
			return
		}
		query, err = tool.Compile(b.query)
		if err != nil {
			return
		}
	}

	// Create and populate the object:
	result = &Writer{
		logger:  b.logger,
		out:     b.out,
		format:  b.format,
		encoder: encoder,
		query:   query,
	}
	return
}

// WriteMessage writes the given message. When there is a query each of its results is written separately.
func (w *Writer) WriteMessage(ctx context.Context, message proto.Message) error {
	value, err := w.encoder.Decode(message)
	if err != nil {
		return err
	}
	return w.WriteValue(ctx, value)
}

// WriteValue writes a value that contains only maps, slices and primitive types. When there is a query each of its
// results is written separately.
func (w *Writer) WriteValue(ctx context.Context, value any) error {
	values := []any{value}
	if w.query != nil {
		err := w.query.Evaluate(ctx, value, &values)
		if err != nil {
			return err
		}
	}
	for i, value := range values {
		err := w.writeValue(i, value)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeValue(index int, value any) error {
	var data []byte
	var err error
	switch w.format {
	case FormatYAML:
		if index > 0 {
			_, err = io.WriteString(w.out, "---\n")
			if err != nil {
				return err
			}
		}
		data, err = yaml.Marshal(value)
	default:
		data, err = jsonAPI.MarshalIndent(value, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	}
	if err != nil {
		return fmt.Errorf("failed to write value in '%s' format: %w", w.format, err)
	}
	_, err = w.out.Write(data)
	return err
}
