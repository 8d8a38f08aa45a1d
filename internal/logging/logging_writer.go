/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
)

// WriterBuilder contains the data and logic needed to create a writer that writes messages to a logger. Don't create
// instances of this type directly, use the NewWriter function instead.
type WriterBuilder struct {
	logger *slog.Logger
	level  slog.Level
	source string
}

// Writer is an implementation of io.Writer that writes each line to a slog.Logger as a separate message. It is used
// to send to the log the output of libraries that only know how to write to an io.Writer, like the internal logger
// of gRPC. Don't create instances of this type directly, use the NewWriter function instead.
type Writer struct {
	logger *slog.Logger
	level  slog.Level
}

// NewWriter creates a builder that can then be used to configure and create a new logging writer.
func NewWriter() *WriterBuilder {
	return &WriterBuilder{
		level: slog.LevelInfo,
	}
}

// SetLogger sets the logger. This is mandatory.
func (b *WriterBuilder) SetLogger(value *slog.Logger) *WriterBuilder {
	b.logger = value
	return b
}

// SetLevel sets the level. This is optional, if not set the 'info' level will be used.
func (b *WriterBuilder) SetLevel(value slog.Level) *WriterBuilder {
	b.level = value
	return b
}

// SetSource sets the value of the `source` field added to all the messages, for example `grpc`. This is optional.
func (b *WriterBuilder) SetSource(value string) *WriterBuilder {
	b.source = value
	return b
}

// Build uses the configuration stored in the builder to create a new logging writer.
func (b *WriterBuilder) Build() (result *Writer, err error) {
	// Check arguments:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Create and populate the object:
	logger := b.logger
	if b.source != "" {
		logger = logger.With(slog.String("source", b.source))
	}
	result = &Writer{
		logger: logger,
		level:  b.level,
	}
	return
}

// Write implements the io.Writer interface.
func (w *Writer) Write(p []byte) (n int, err error) {
	n = len(p)
	ctx := context.Background()
	if !w.logger.Enabled(ctx, w.level) {
		return
	}
	for _, line := range bytes.Split(p, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		w.logger.Log(ctx, w.level, string(line))
	}
	return
}
