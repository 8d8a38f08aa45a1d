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
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc/grpclog"
)

// InstallGrpcLogger replaces the internal logger of the gRPC library with one that sends the messages, at the debug
// level, to the logger configured with the ForwardGrpcLogger function. Until then the messages are discarded. The gRPC
// library requires this to happen before any other gRPC function is called, so it should be called from the main
// function, before running commands. Calling it more than once has no effect.
//
// The gRPC logger copies warnings and errors to the writer of informative messages, so only that writer is connected
// in order to avoid duplicated lines.
func InstallGrpcLogger() {
	grpcLoggerOnce.Do(func() {
		grpclog.SetLoggerV2(grpclog.NewLoggerV2(grpcForwarder{}, io.Discard, io.Discard))
	})
}

// ForwardGrpcLogger sets the logger that receives the messages of the gRPC library, replacing the previous one. Unlike
// InstallGrpcLogger it is safe to call it while gRPC connections or servers are running.
func ForwardGrpcLogger(logger *slog.Logger) error {
	writer, err := NewWriter().
		SetLogger(logger).
		SetLevel(slog.LevelDebug).
		SetSource("grpc").
		Build()
	if err != nil {
		return err
	}
	grpcLoggerTarget.Store(writer)
	return nil
}

// grpcForwarder is the writer given to the gRPC library. It writes to the current target, if any.
type grpcForwarder struct{}

func (f grpcForwarder) Write(p []byte) (n int, err error) {
	target := grpcLoggerTarget.Load()
	if target == nil {
		n = len(p)
		return
	}
	return target.Write(p)
}

var (
	grpcLoggerOnce   sync.Once
	grpcLoggerTarget atomic.Pointer[Writer]
)
