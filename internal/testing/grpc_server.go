/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package testing

import (
	"net"
	"slices"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
)

// GrpcServer is an in-process gRPC server that accepts calls to any method, records the method and the metadata, and
// responds with an empty message or with the response configured for the method. Don't create instances of this type
// directly, use the NewGrpcServer function instead.
type GrpcServer struct {
	listener  net.Listener
	server    *grpc.Server
	lock      *sync.Mutex
	calls     []*GrpcCall
	failures  map[string]*grpcstatus.Status
	responses map[string]proto.Message
}

// GrpcCall contains the details of a call received by the server.
type GrpcCall struct {
	Method   string
	Metadata metadata.MD
}

// NewGrpcServer creates and starts a new server listening on a random local port. It panics if the listener can't be
// created.
func NewGrpcServer() *GrpcServer {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	result := &GrpcServer{
		listener:  listener,
		lock:      &sync.Mutex{},
		failures:  map[string]*grpcstatus.Status{},
		responses: map[string]proto.Message{},
	}
	result.server = grpc.NewServer(
		grpc.UnknownServiceHandler(result.handle),
	)
	go func() {
		_ = result.server.Serve(listener)
	}()
	return result
}

// Address returns the address where the server is listening.
func (s *GrpcServer) Address() string {
	return s.listener.Addr().String()
}

// AddFailure configures the server so that calls to the given method fail with the given status.
func (s *GrpcServer) AddFailure(method string, status *grpcstatus.Status) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failures[method] = status
}

// SetResponse configures the server so that calls to the given method return the given message.
func (s *GrpcServer) SetResponse(method string, response proto.Message) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.responses[method] = response
}

// Calls returns a copy of the list of calls received so far.
func (s *GrpcServer) Calls() []*GrpcCall {
	s.lock.Lock()
	defer s.lock.Unlock()
	return slices.Clone(s.calls)
}

// Close stops the server.
func (s *GrpcServer) Close() {
	s.server.Stop()
}

func (s *GrpcServer) handle(server any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	md, _ := metadata.FromIncomingContext(stream.Context())
	s.lock.Lock()
	s.calls = append(s.calls, &GrpcCall{
		Method:   method,
		Metadata: md,
	})
	failure := s.failures[method]
	response := s.responses[method]
	s.lock.Unlock()
	request := &emptypb.Empty{}
	err := stream.RecvMsg(request)
	if err != nil {
		return err
	}
	if failure != nil {
		return failure.Err()
	}
	if response == nil {
		response = &emptypb.Empty{}
	}
	return stream.SendMsg(response)
}
