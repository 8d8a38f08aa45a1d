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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// InterceptorBuilder contains the data and logic needed to build an interceptor that writes to the log the details of
// outgoing calls. Don't create instances of this type directly, use the NewInterceptor function instead.
type InterceptorBuilder struct {
	logger  *slog.Logger
	headers bool
	bodies  bool
	redact  bool
}

// Interceptor contains the data needed by the Interceptor, like the logger and settings.
type Interceptor struct {
	logger  *slog.Logger
	headers bool
	bodies  bool
	redact  bool
}

// NewInterceptor creates a builder that can then be used to configure and create a logging interceptor.
func NewInterceptor() *InterceptorBuilder {
	return &InterceptorBuilder{
		redact: true,
	}
}

// SetLogger sets the logger that will be used to write to the log. This is mandatory.
func (b *InterceptorBuilder) SetLogger(value *slog.Logger) *InterceptorBuilder {
	b.logger = value
	return b
}

// SetHeaders indicates if the outgoing metadata should be included in log messages. The default is to not include
// it.
func (b *InterceptorBuilder) SetHeaders(value bool) *InterceptorBuilder {
	b.headers = value
	return b
}

// SetBodies indicates if details about the request and response messages should be included in log messages. The
// default is to not include them.
func (b *InterceptorBuilder) SetBodies(value bool) *InterceptorBuilder {
	b.bodies = value
	return b
}

// SetRedact indicates if security sensitive information should be redacted. The default is true.
func (b *InterceptorBuilder) SetRedact(value bool) *InterceptorBuilder {
	b.redact = value
	return b
}

// SetFlags sets the command line flags that should be used to configure the interceptor. This is optional.
func (b *InterceptorBuilder) SetFlags(flags *pflag.FlagSet) *InterceptorBuilder {
	if flags == nil {
		return b
	}
	if flags.Changed(headersFlagName) {
		value, err := flags.GetBool(headersFlagName)
		if err == nil {
			b.SetHeaders(value)
		}
	}
	if flags.Changed(bodiesFlagName) {
		value, err := flags.GetBool(bodiesFlagName)
		if err == nil {
			b.SetBodies(value)
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

// Build uses the data stored in the builder to create and configure a new interceptor.
func (b *InterceptorBuilder) Build() (result *Interceptor, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Create and populate the object:
	result = &Interceptor{
		logger:  b.logger,
		headers: b.headers,
		bodies:  b.bodies,
		redact:  b.redact,
	}
	return
}

// UnaryClient is the unary client interceptor function. It should be the last of the chain, so that it sees the
// metadata added by the other interceptors.
func (i *Interceptor) UnaryClient(ctx context.Context, method string, request, reply any, conn *grpc.ClientConn,
	invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	// The processing here is expensive, so better if we avoid it completely when debug is disabled:
	if !i.logger.Enabled(ctx, slog.LevelDebug) {
		return invoker(ctx, method, request, reply, conn, opts...)
	}

	// Get the time before calling the invoker so that we can later compute the duration of the call:
	timeBefore := time.Now()

	// Write the details of the request:
	callField := slog.String("call", uuid.NewString())
	methodField := slog.String("method", method)
	requestFields := []any{
		callField,
		methodField,
	}
	if conn != nil {
		requestFields = append(requestFields, slog.String("target", conn.Target()))
	}
	if i.headers {
		md, ok := metadata.FromOutgoingContext(ctx)
		if ok {
			requestFields = append(requestFields, slog.Any("metadata", i.dumpMD(md)))
		}
	}
	if i.bodies && request != nil {
		bodyField, ok := i.dumpMessage(ctx, "request", request)
		if ok {
			requestFields = append(requestFields, bodyField)
		}
	}
	i.logger.DebugContext(ctx, "Sending unary request", requestFields...)

	// Call the invoker:
	err := invoker(ctx, method, request, reply, conn, opts...)

	// Write the details of the response:
	timeElapsed := time.Since(timeBefore)
	responseFields := []any{
		callField,
		methodField,
		slog.Duration("duration", timeElapsed),
		slog.String("code", grpcstatus.Code(err).String()),
	}
	if i.bodies && err == nil && reply != nil {
		bodyField, ok := i.dumpMessage(ctx, "response", reply)
		if ok {
			responseFields = append(responseFields, bodyField)
		}
	}
	if err != nil {
		responseFields = append(responseFields, slog.Any("error", err))
	}
	i.logger.DebugContext(ctx, "Received unary response", responseFields...)

	return err
}

// StreamClient is the stream client interceptor function.
func (i *Interceptor) StreamClient(ctx context.Context, desc *grpc.StreamDesc, conn *grpc.ClientConn, method string,
	streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	// The processing here is expensive, so better if we avoid it completely when debug is disabled:
	if !i.logger.Enabled(ctx, slog.LevelDebug) {
		return streamer(ctx, desc, conn, method, opts...)
	}

	// Write the details of the request:
	callField := slog.String("call", uuid.NewString())
	methodField := slog.String("method", method)
	requestFields := []any{
		callField,
		methodField,
	}
	if i.headers {
		md, ok := metadata.FromOutgoingContext(ctx)
		if ok {
			requestFields = append(requestFields, slog.Any("metadata", i.dumpMD(md)))
		}
	}
	i.logger.DebugContext(ctx, "Starting stream", requestFields...)

	// Create the stream and wrap it so that we can log the details of the messages exchanged:
	stream, err := streamer(ctx, desc, conn, method, opts...)
	if err != nil {
		i.logger.DebugContext(
			ctx,
			"Failed to start stream",
			callField,
			methodField,
			slog.String("code", grpcstatus.Code(err).String()),
			slog.Any("error", err),
		)
		return nil, err
	}
	return &interceptorStream{
		parent: i,
		fields: []any{callField, methodField},
		stream: stream,
	}, nil
}

// dumpMD generates a copy of the given metadata that can be written to the log, without security sensitive data
// when redacting is enabled.
func (i *Interceptor) dumpMD(md metadata.MD) metadata.MD {
	if !i.redact {
		return md
	}
	result := make(metadata.MD, len(md))
	for key, values := range md {
		redacted := slices.Clone(values)
		for j, value := range values {
			redacted[j] = i.redactMDValue(key, value)
		}
		result[key] = redacted
	}
	return result
}

func (i *Interceptor) redactMDValue(key string, value string) string {
	switch strings.ToLower(key) {
	case "authorization":
		return redactCredential(value)
	default:
		return value
	}
}

// dumpMessage tries to covert the given message to something that can be added to the log and returns the
// corresponding log field.
func (i *Interceptor) dumpMessage(ctx context.Context, key string, value any) (field any, ok bool) {
	message, isMessage := value.(proto.Message)
	if !isMessage {
		i.logger.ErrorContext(
			ctx,
			"Failed to dump value because it isn't a protocol buffers message",
			slog.String("type", fmt.Sprintf("%T", value)),
		)
		return
	}
	data, err := protojson.Marshal(message)
	if err != nil {
		i.logger.ErrorContext(
			ctx,
			"Failed to marshal protocol buffers message",
			slog.Any("error", err),
		)
		return
	}
	var decoded any
	err = jsonAPI.Unmarshal(data, &decoded)
	if err != nil {
		i.logger.ErrorContext(
			ctx,
			"Failed to unmarshal protocol buffers message",
			slog.Any("error", err),
		)
		return
	}
	ok = true
	field = slog.Any(key, decoded)
	return
}

type interceptorStream struct {
	parent *Interceptor
	fields []any
	stream grpc.ClientStream
}

func (s *interceptorStream) Header() (metadata.MD, error) {
	return s.stream.Header()
}

func (s *interceptorStream) Trailer() metadata.MD {
	return s.stream.Trailer()
}

func (s *interceptorStream) CloseSend() error {
	err := s.stream.CloseSend()
	s.log("Closed stream send direction", nil, err)
	return err
}

func (s *interceptorStream) Context() context.Context {
	return s.stream.Context()
}

func (s *interceptorStream) SendMsg(message any) error {
	err := s.stream.SendMsg(message)
	s.log("Sent stream message", message, err)
	return err
}

func (s *interceptorStream) RecvMsg(message any) error {
	err := s.stream.RecvMsg(message)
	if errors.Is(err, io.EOF) {
		s.log("Received end of stream", nil, nil)
		return err
	}
	s.log("Received stream message", message, err)
	return err
}

func (s *interceptorStream) log(msg string, message any, err error) {
	ctx := s.stream.Context()
	fields := slices.Clone(s.fields)
	if s.parent.bodies && message != nil && err == nil {
		bodyField, ok := s.parent.dumpMessage(ctx, "message", message)
		if ok {
			fields = append(fields, bodyField)
		}
	}
	if err != nil {
		fields = append(fields, slog.String("code", grpcstatus.Code(err).String()), slog.Any("error", err))
	}
	s.parent.logger.DebugContext(ctx, msg, fields...)
}
