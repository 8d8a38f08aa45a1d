/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package network

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	. "github.com/innabox/kubeapps-client/internal/testing"
)

var _ = Describe("gRPC client", func() {
	Describe("Building", func() {
		It("Can't be built without a logger", func() {
			_, err := NewClient().
				SetServerAddress("localhost:50051").
				Build()
			Expect(err).To(MatchError("logger is mandatory"))
		})

		It("Can't be built without a server address", func() {
			_, err := NewClient().
				SetLogger(logger).
				Build()
			Expect(err).To(MatchError("server address is mandatory"))
		})

		It("Can't be built with an unknown network", func() {
			_, err := NewClient().
				SetLogger(logger).
				SetServerNetwork("udp").
				SetServerAddress("localhost:50051").
				Build()
			Expect(err).To(MatchError("unknown network 'udp'"))
		})

		It("Can't be built with a nil interceptor", func() {
			_, err := NewClient().
				SetLogger(logger).
				SetServerAddress("localhost:50051").
				AddUnaryInterceptor(nil).
				Build()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("nil"))
		})

		It("Can't be built with a CA file that doesn't exist", func() {
			_, err := NewClient().
				SetLogger(logger).
				SetServerAddress("localhost:50051").
				AddCaFile("/does/not/exist").
				Build()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("/does/not/exist"))
		})

		It("Uses the DNS resolver for TCP addresses", func() {
			conn, err := NewClient().
				SetLogger(logger).
				SetServerAddress("localhost:50051").
				Build()
			Expect(err).ToNot(HaveOccurred())
			defer conn.Close()
			Expect(conn.Target()).To(Equal("dns:///localhost:50051"))
		})

		It("Uses the unix scheme for absolute socket paths", func() {
			conn, err := NewClient().
				SetLogger(logger).
				SetServerNetwork("unix").
				SetServerAddress("/run/kubeapps.sock").
				SetServerPlaintext(true).
				Build()
			Expect(err).ToNot(HaveOccurred())
			defer conn.Close()
			Expect(conn.Target()).To(Equal("unix:///run/kubeapps.sock"))
		})

		It("Uses the unix scheme for relative socket paths", func() {
			conn, err := NewClient().
				SetLogger(logger).
				SetServerNetwork("unix").
				SetServerAddress("kubeapps.sock").
				SetServerPlaintext(true).
				Build()
			Expect(err).ToNot(HaveOccurred())
			defer conn.Close()
			Expect(conn.Target()).To(Equal("unix:kubeapps.sock"))
		})

		It("Takes the configuration from the flags", func() {
			flags := pflag.NewFlagSet("", pflag.ContinueOnError)
			AddGrpcClientFlags(flags, GrpcClientName, DefaultGrpcAddress)
			err := flags.Parse([]string{
				"--grpc-server-address", "kubeapps.example.com:443",
				"--grpc-server-no-alpn",
			})
			Expect(err).ToNot(HaveOccurred())
			conn, err := NewClient().
				SetLogger(logger).
				SetFlags(flags, GrpcClientName).
				Build()
			Expect(err).ToNot(HaveOccurred())
			defer conn.Close()
			Expect(conn.Target()).To(Equal("dns:///kubeapps.example.com:443"))
		})
	})

	Describe("Calls", func() {
		var server *GrpcServer

		BeforeEach(func() {
			server = NewGrpcServer()
			DeferCleanup(server.Close)
		})

		It("Calls the interceptors in the order they were added", func() {
			var order []string
			interceptor := func(name string) grpc.UnaryClientInterceptor {
				return func(ctx context.Context, method string, request, reply any, conn *grpc.ClientConn,
					invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
					order = append(order, name)
					return invoker(ctx, method, request, reply, conn, opts...)
				}
			}
			conn, err := NewClient().
				SetLogger(logger).
				SetServerAddress(server.Address()).
				SetServerPlaintext(true).
				AddUnaryInterceptor(interceptor("first")).
				AddUnaryInterceptor(interceptor("second")).
				Build()
			Expect(err).ToNot(HaveOccurred())
			defer conn.Close()
			err = conn.Invoke(context.Background(), "/my.Service/MyMethod", &emptypb.Empty{}, &emptypb.Empty{})
			Expect(err).ToNot(HaveOccurred())
			Expect(order).To(Equal([]string{"first", "second"}))
			calls := server.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Method).To(Equal("/my.Service/MyMethod"))
		})

		It("Calls the stream interceptors", func() {
			called := false
			conn, err := NewClient().
				SetLogger(logger).
				SetServerAddress(server.Address()).
				SetServerPlaintext(true).
				AddStreamInterceptor(func(ctx context.Context, desc *grpc.StreamDesc, conn *grpc.ClientConn,
					method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
					called = true
					return streamer(ctx, desc, conn, method, opts...)
				}).
				Build()
			Expect(err).ToNot(HaveOccurred())
			defer conn.Close()
			stream, err := conn.NewStream(
				context.Background(),
				&grpc.StreamDesc{ServerStreams: true},
				"/my.Service/MyStream",
			)
			Expect(err).ToNot(HaveOccurred())
			err = stream.SendMsg(&emptypb.Empty{})
			Expect(err).ToNot(HaveOccurred())
			err = stream.CloseSend()
			Expect(err).ToNot(HaveOccurred())
			err = stream.RecvMsg(&emptypb.Empty{})
			Expect(err).ToNot(HaveOccurred())
			Expect(called).To(BeTrue())
		})

		It("Sends the user agent", func() {
			conn, err := NewClient().
				SetLogger(logger).
				SetServerAddress(server.Address()).
				SetServerPlaintext(true).
				SetUserAgent("my-agent").
				Build()
			Expect(err).ToNot(HaveOccurred())
			defer conn.Close()
			err = conn.Invoke(context.Background(), "/my.Service/MyMethod", &emptypb.Empty{}, &emptypb.Empty{})
			Expect(err).ToNot(HaveOccurred())
			calls := server.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Metadata.Get("user-agent")).To(ContainElement(HavePrefix("my-agent")))
		})
	})

	Describe("Token flags", func() {
		var flags *pflag.FlagSet

		BeforeEach(func() {
			flags = pflag.NewFlagSet("", pflag.ContinueOnError)
			AddGrpcClientFlags(flags, GrpcClientName, DefaultGrpcAddress)
		})

		It("Returns empty when no flag is used", func() {
			token, err := GrpcClientToken(flags, GrpcClientName)
			Expect(err).ToNot(HaveOccurred())
			Expect(token).To(BeEmpty())
		})

		It("Returns the token", func() {
			err := flags.Parse([]string{"--grpc-token", "my-token"})
			Expect(err).ToNot(HaveOccurred())
			token, err := GrpcClientToken(flags, GrpcClientName)
			Expect(err).ToNot(HaveOccurred())
			Expect(token).To(Equal("my-token"))
		})

		It("Reads the token file", func() {
			file := filepath.Join(GinkgoT().TempDir(), "token")
			err := os.WriteFile(file, []byte("my-token\n"), 0600)
			Expect(err).ToNot(HaveOccurred())
			err = flags.Parse([]string{"--grpc-token-file", file})
			Expect(err).ToNot(HaveOccurred())
			token, err := GrpcClientToken(flags, GrpcClientName)
			Expect(err).ToNot(HaveOccurred())
			Expect(token).To(Equal("my-token"))
		})

		It("Fails if both the token and the file are used", func() {
			err := flags.Parse([]string{"--grpc-token", "my-token", "--grpc-token-file", "my-file"})
			Expect(err).ToNot(HaveOccurred())
			_, err = GrpcClientToken(flags, GrpcClientName)
			Expect(err).To(MatchError("token and token file are incompatible"))
		})
	})

	Describe("Base URL", func() {
		var flags *pflag.FlagSet

		BeforeEach(func() {
			flags = pflag.NewFlagSet("", pflag.ContinueOnError)
			AddGrpcClientFlags(flags, GrpcClientName, DefaultGrpcAddress)
		})

		It("Uses HTTPS by default", func() {
			url, err := GrpcClientBaseURL(flags, GrpcClientName)
			Expect(err).ToNot(HaveOccurred())
			Expect(url).To(Equal("https://localhost:50051"))
		})

		It("Uses HTTP when TLS is disabled", func() {
			err := flags.Parse([]string{"--grpc-server-address", "my-host:8080", "--grpc-server-plaintext"})
			Expect(err).ToNot(HaveOccurred())
			url, err := GrpcClientBaseURL(flags, GrpcClientName)
			Expect(err).ToNot(HaveOccurred())
			Expect(url).To(Equal("http://my-host:8080"))
		})

		It("Fails for unix sockets", func() {
			err := flags.Parse([]string{"--grpc-server-network", "unix"})
			Expect(err).ToNot(HaveOccurred())
			_, err = GrpcClientBaseURL(flags, GrpcClientName)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unix"))
		})
	})
})
