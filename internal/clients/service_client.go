/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package clients

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"

	"github.com/innabox/kubeapps-client/internal/api"
)

// ServiceClient sends calls to the methods of one service. It works with any protocol buffers message, including
// the generated ones and dynamic messages.
type ServiceClient struct {
	service api.Service
	conn    grpc.ClientConnInterface
}

func newServiceClient(service api.Service, conn grpc.ClientConnInterface) *ServiceClient {
	return &ServiceClient{
		service: service,
		conn:    conn,
	}
}

// Service returns the service that this client sends calls to.
func (c *ServiceClient) Service() api.Service {
	return c.service
}

// Invoke calls the given unary method of the service. The method is the short name, for example
// `GetAvailablePackageSummaries`.
func (c *ServiceClient) Invoke(ctx context.Context, method string, request, response proto.Message,
	opts ...grpc.CallOption) error {
	return c.conn.Invoke(ctx, c.service.Method(method), request, response, opts...)
}

// NewStream starts a streaming call to the given method of the service.
func (c *ServiceClient) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string,
	opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return c.conn.NewStream(ctx, desc, c.service.Method(method), opts...)
}
