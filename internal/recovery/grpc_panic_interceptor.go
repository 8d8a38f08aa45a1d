/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package recovery

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// GrpcPanicInterceptorBuilder contains the data and logic needed to build an interceptor that recovers from panics.
// Don't create instances of this type directly, use the NewGrpcPanicInterceptor function instead.
type GrpcPanicInterceptorBuilder struct {
	logger *slog.Logger
}

// GrpcPanicInterceptor is a client interceptor that converts panics raised by the rest of the chain, for example by an
// injected token source, into calls that fail with the internal error code.
type GrpcPanicInterceptor struct {
	logger *slog.Logger
}

// NewGrpcPanicInterceptor creates a builder that can then be used to configure and create a panic recovery interceptor.
func NewGrpcPanicInterceptor() *GrpcPanicInterceptorBuilder {
	return &GrpcPanicInterceptorBuilder{}
}

// SetLogger sets the logger that will be used to write to the log. This is mandatory.
func (b *GrpcPanicInterceptorBuilder) SetLogger(value *slog.Logger) *GrpcPanicInterceptorBuilder {
	b.logger = value
	return b
}

// Build uses the data stored in the builder to create and configure a new interceptor.
func (b *GrpcPanicInterceptorBuilder) Build() (result *GrpcPanicInterceptor, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Create and populate the object:
	result = &GrpcPanicInterceptor{
		logger: b.logger,
	}
	return
}

// UnaryClient is the unary client interceptor function that recovers from panics.
func (i *GrpcPanicInterceptor) UnaryClient(ctx context.Context, method string, request, reply any,
	conn *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) (err error) {
	defer func() {
		fault := recover()
		if fault != nil {
			err = i.recovered(ctx, "Panic occurred in gRPC unary call", method, fault)
		}
	}()
	err = invoker(ctx, method, request, reply, conn, opts...)
	return
}

// StreamClient is the stream client interceptor function that recovers from panics that happen while the stream is
// created. Panics inside the methods of the returned stream aren't recovered.
func (i *GrpcPanicInterceptor) StreamClient(ctx context.Context, desc *grpc.StreamDesc, conn *grpc.ClientConn,
	method string, streamer grpc.Streamer, opts ...grpc.CallOption) (stream grpc.ClientStream, err error) {
	defer func() {
		fault := recover()
		if fault != nil {
			err = i.recovered(ctx, "Panic occurred in gRPC stream call", method, fault)
			stream = nil
		}
	}()
	stream, err = streamer(ctx, desc, conn, method, opts...)
	return
}

func (i *GrpcPanicInterceptor) recovered(ctx context.Context, msg string, method string, fault any) error {
	i.logger.ErrorContext(
		ctx,
		msg,
		slog.String("method", method),
		slog.Any("fault", fault),
	)
	return grpcstatus.Errorf(grpccodes.Internal, "Internal error")
}
