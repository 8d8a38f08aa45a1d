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
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"runtime/debug"
	"strings"
	"time"

	"github.com/DataDog/gostackparse"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// LoggerBuilder contains the data and logic needed to create a logger. Don't create instances of this directly, use the
// NewLogger function instead.
type LoggerBuilder struct {
	writer io.Writer
	out    io.Writer
	err    io.Writer
	level  string
	file   string
	fields []loggerField
	redact bool
}

// loggerField is a field added to all the messages, in the order it was configured.
type loggerField struct {
	name  string
	value any
}

// NewLogger creates a builder that can then be used to configure and create a logger.
func NewLogger() *LoggerBuilder {
	return &LoggerBuilder{
		redact: true,
	}
}

// SetWriter sets the writer that the logger will write to. When set it takes precedence over the log file.
func (b *LoggerBuilder) SetWriter(value io.Writer) *LoggerBuilder {
	b.writer = value
	return b
}

// SetOut sets the stream used when the log file is 'stdout'. The default is the standard output of the process.
func (b *LoggerBuilder) SetOut(value io.Writer) *LoggerBuilder {
	b.out = value
	return b
}

// SetErr sets the stream used when the log file is 'stderr'. The default is the standard error of the process.
func (b *LoggerBuilder) SetErr(value io.Writer) *LoggerBuilder {
	b.err = value
	return b
}

// AddField adds a field that will be added to all the log messages. The value '%p' is replaced by the process
// identifier. Adding a field with a name that was already added replaces the previous value.
func (b *LoggerBuilder) AddField(name string, value any) *LoggerBuilder {
	for i, field := range b.fields {
		if field.name == name {
			b.fields[i].value = value
			return b
		}
	}
	b.fields = append(b.fields, loggerField{
		name:  name,
		value: value,
	})
	return b
}

// SetLevel sets the log level. The default is 'info'.
func (b *LoggerBuilder) SetLevel(value string) *LoggerBuilder {
	b.level = value
	return b
}

// SetRedact sets the flag that indicates if credentials should be removed from the log. The default is true. When
// enabled the following values are replaced by '***':
//
//   - Fields whose name starts with an exclamation mark, like '!token'.
//   - Fields named like credentials, for example 'authorization' or 'token'.
//   - Text values that carry a credential scheme, like 'Bearer eyJ...', where only the scheme is kept.
//
// For example:
//
//	logger.Info(
//		"Acquired token",
//		"cluster", cluster,
//		"!token", token,
//	)
//
// Results in a message like this:
//
//	{
//		"msg": "Acquired token",
//		"cluster": "default",
//		"token": "***"
//	}
//
// The exclamation mark is always removed from the field name.
func (b *LoggerBuilder) SetRedact(value bool) *LoggerBuilder {
	b.redact = value
	return b
}

// SetFlags sets the command line flags that should be used to configure the logger. This is optional.
func (b *LoggerBuilder) SetFlags(flags *pflag.FlagSet) *LoggerBuilder {
	if flags == nil {
		return b
	}
	if flags.Changed(levelFlagName) {
		value, err := flags.GetString(levelFlagName)
		if err == nil {
			b.SetLevel(value)
		}
	}

	// The file flag defaults to 'stderr' so that the log doesn't mix with the output of the commands, and that
	// default applies even when the flag isn't changed.
	if flags.Lookup(fileFlagName) != nil {
		value, err := flags.GetString(fileFlagName)
		if err == nil {
			b.file = value
		}
	}
	if flags.Changed(fieldFlagName) {
		values, err := flags.GetStringArray(fieldFlagName)
		if err == nil {
			for _, value := range values {
				b.addFieldItem(value)
			}
		}
	}
	if flags.Changed(redactFlagName) {
		value, err := flags.GetBool(redactFlagName)
		if err == nil {
			b.SetRedact(value)
		}
	}
	return b
}

// addFieldItem adds a field given as 'name=value'. A bare '%p' is short for 'pid=%p'.
func (b *LoggerBuilder) addFieldItem(item string) {
	if item == pidFieldValue {
		b.AddField(pidFieldName, pidFieldValue)
		return
	}
	name, value, _ := strings.Cut(item, "=")
	b.AddField(strings.TrimSpace(name), value)
}

// Build uses the data stored in the buider to create a new logger.
func (b *LoggerBuilder) Build() (result *slog.Logger, err error) {
	writer := b.writer
	if writer == nil {
		writer, err = b.openWriter()
		if err != nil {
			return
		}
	}
	level := slog.LevelInfo
	if b.level != "" {
		err = level.UnmarshalText([]byte(b.level))
		if err != nil {
			err = fmt.Errorf("invalid log level '%s': %w", b.level, err)
			return
		}
	}
	replacer := &attrReplacer{
		redact: b.redact,
		skipPrefixes: []string{
			"runtime/debug.",
			"log/slog.",
			loggingPackage + ".",
		},
	}
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replacer.replace,
	})
	args := make([]any, 0, 2*len(b.fields))
	for _, field := range b.fields {
		value := field.value
		if value == pidFieldValue {
			value = os.Getpid()
		}
		args = append(args, field.name, value)
	}
	result = slog.New(handler).With(args...)
	return
}

func (b *LoggerBuilder) openWriter() (result io.Writer, err error) {
	switch b.file {
	case "", "stdout":
		result = b.out
		if result == nil {
			result = os.Stdout
		}
	case "stderr":
		result = b.err
		if result == nil {
			result = os.Stderr
		}
	default:
		result, err = os.OpenFile(b.file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0660)
		if err != nil {
			err = fmt.Errorf("failed to open log file '%s': %w", b.file, err)
		}
	}
	return
}

// attrReplacer rewrites the attributes of the messages before they are rendered as JSON.
type attrReplacer struct {
	redact       bool
	skipPrefixes []string
}

func (r *attrReplacer) replace(groups []string, a slog.Attr) slog.Attr {
	a = r.replaceCredential(a)
	switch a.Value.Kind() {
	case slog.KindTime:
		a = slog.String(a.Key, a.Value.Time().UTC().Format(time.RFC3339))
	case slog.KindDuration:
		a = slog.String(a.Key, a.Value.Duration().String())
	case slog.KindAny:
		switch value := a.Value.Any().(type) {
		case error:
			a = slog.Any(a.Key, r.dumpError(value))
		case proto.Message:
			dump, ok := r.dumpMessage(value)
			if ok {
				a = slog.Any(a.Key, dump)
			}
		}
	}
	return a
}

func (r *attrReplacer) replaceCredential(a slog.Attr) slog.Attr {
	name, marked := strings.CutPrefix(a.Key, "!")
	if !r.redact {
		a.Key = name
		return a
	}
	if marked || isCredentialName(name) {
		return slog.String(name, redactMark)
	}
	if a.Value.Kind() == slog.KindString {
		value := a.Value.String()
		if hasCredentialScheme(value) {
			return slog.String(name, redactCredential(value))
		}
	}
	return a
}

func (r *attrReplacer) dumpMessage(message proto.Message) (result any, ok bool) {
	wrapper, err := anypb.New(message)
	if err != nil {
		return
	}
	data, err := protoMarshalOptions.Marshal(wrapper)
	if err != nil {
		return
	}
	err = jsonAPI.Unmarshal(data, &result)
	if err != nil {
		return
	}
	ok = true
	return
}

type errorDump struct {
	Message   string      `json:"message,omitempty"`
	Goroutine int         `json:"goroutine,omitempty"`
	Stack     []frameDump `json:"stack,omitempty"`
}

type frameDump struct {
	Function string `json:"function,omitempty"`
	File     string `json:"source,omitempty"`
}

// dumpError renders the error with the stack of the goroutine that logged it, without the frames of this package and
// of the 'slog' package.
func (r *attrReplacer) dumpError(err error) errorDump {
	dump := errorDump{
		Message: err.Error(),
	}
	goroutines, _ := gostackparse.Parse(bytes.NewReader(debug.Stack()))
	if len(goroutines) == 0 {
		return dump
	}
	dump.Goroutine = goroutines[0].ID
	frames := goroutines[0].Stack
	for len(frames) > 0 && r.isSkipped(frames[0].Func) {
		frames = frames[1:]
	}
	dump.Stack = make([]frameDump, len(frames))
	for i, frame := range frames {
		dump.Stack[i] = frameDump{
			Function: frame.Func,
			File:     fmt.Sprintf("%s:%d", frame.File, frame.Line),
		}
	}
	return dump
}

func (r *attrReplacer) isSkipped(function string) bool {
	for _, prefix := range r.skipPrefixes {
		if strings.HasPrefix(function, prefix) {
			return true
		}
	}
	return false
}

// isCredentialName checks if the name of a field is one that always carries a credential.
func isCredentialName(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "token", "access_token", "refresh_token", "password", "client_secret":
		return true
	default:
		return false
	}
}

// hasCredentialScheme checks if a text starts with one of the schemes used in the authorization header.
func hasCredentialScheme(value string) bool {
	scheme, _, found := strings.Cut(value, " ")
	if !found {
		return false
	}
	switch strings.ToLower(scheme) {
	case "bearer", "basic":
		return true
	default:
		return false
	}
}

// redactCredential replaces a credential with the redact mark, keeping the scheme if there is one. For example
// 'Bearer eyJ...' is replaced by 'Bearer ***'.
func redactCredential(value string) string {
	scheme, _, found := strings.Cut(value, " ")
	if !found {
		return redactMark
	}
	return fmt.Sprintf("%s %s", scheme, redactMark)
}

// Field that is replaced by the process identifier.
const (
	pidFieldName  = "pid"
	pidFieldValue = "%p"
)

// Mark that replaces redacted values.
const redactMark = "***"

// loggingPackage is the import path of this package, used to remove its frames from stack traces.
var loggingPackage = reflect.TypeOf(attrReplacer{}).PkgPath()

// jsonAPI is used to convert the JSON generated for protocol buffers messages into values that the handler can
// render.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// protoMarshalOptions are the options used to render protocol buffers messages.
var protoMarshalOptions = protojson.MarshalOptions{
	UseProtoNames: true,
}
