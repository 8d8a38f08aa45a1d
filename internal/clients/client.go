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
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"
	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/innabox/kubeapps-client/internal/api"
	"github.com/innabox/kubeapps-client/internal/auth"
	"github.com/innabox/kubeapps-client/internal/logging"
	"github.com/innabox/kubeapps-client/internal/network"
	"github.com/innabox/kubeapps-client/internal/recovery"
)

// ClientBuilder contains the data and logic needed to create an object that simplifies use of the Kubeapps APIs for
// clients. Don't create instances of this directly, use the NewClient function instead.
type ClientBuilder struct {
	logger           *slog.Logger
	flags            *pflag.FlagSet
	token            string
	loginSource      oauth2.TokenSource
	privilegedServer string
	privileged       []api.Operation
}

// Client simplifies use of the Kubeapps APIs. All the calls made with the service clients that it returns share
// one connection and one session: the same explicit token, the same login token source and the same cached
// privileged token.
type Client struct {
	logger      *slog.Logger
	grpcConn    *grpc.ClientConn
	acquirer    *auth.TokenAcquirer
	interceptor *auth.CredentialInterceptor
	services    map[api.Service]*ServiceClient
}

// NewClient creates a builder that can then be used to configure and create a Kubeapps APIs client.
func NewClient() *ClientBuilder {
	return &ClientBuilder{}
}

// SetLogger sets the logger. This is mandatory.
func (b *ClientBuilder) SetLogger(value *slog.Logger) *ClientBuilder {
	b.logger = value
	return b
}

// SetFlags sets the command line flags that should be used to configure the client. The flags should have been
// added with the AddFlags function. This is optional.
func (b *ClientBuilder) SetFlags(flags *pflag.FlagSet) *ClientBuilder {
	b.flags = flags
	return b
}

// SetToken sets the bearer token used for the calls that aren't privileged. When not set the token given with the
// token flags is used, and when there is none the login token is used.
func (b *ClientBuilder) SetToken(value string) *ClientBuilder {
	b.token = value
	return b
}

// SetLoginTokenSource sets the source of the login token of the user. When not set the source is created from the
// login token flags.
func (b *ClientBuilder) SetLoginTokenSource(value oauth2.TokenSource) *ClientBuilder {
	b.loginSource = value
	return b
}

// SetPrivilegedTokenServer sets the base URL of the server that issues the privileged tokens. When not set the value
// of the privileged token server flag is used, and when there is none it is calculated from the address of the gRPC
// server, as the Kubeapps frontend serves both.
func (b *ClientBuilder) SetPrivilegedTokenServer(value string) *ClientBuilder {
	b.privilegedServer = value
	return b
}

// AddPrivilegedOperation adds an operation that will be authenticated with the privileged token. When not called
// only the installation of packages with the core packages service is privileged.
func (b *ClientBuilder) AddPrivilegedOperation(value api.Operation) *ClientBuilder {
	b.privileged = append(b.privileged, value)
	return b
}

// Build uses the data stored in the buider to create a new Kubeapps APIs client.
func (b *ClientBuilder) Build() (result *Client, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Get the explicit token:
	token := b.token
	if token == "" {
		token, err = network.GrpcClientToken(b.flags, network.GrpcClientName)
		if err != nil {
			err = fmt.Errorf("failed to get token: %w", err)
			return
		}
	}

	// Create the login token source:
	loginSource := b.loginSource
	if loginSource == nil {
		loginSource, err = auth.NewLoginTokenSource().
			SetLogger(b.logger).
			SetFlags(b.flags).
			Build()
		if err != nil {
			err = fmt.Errorf("failed to create login token source: %w", err)
			return
		}
	}

	// Create the acquirer of the privileged token:
	acquirer, err := b.createAcquirer()
	if err != nil {
		err = fmt.Errorf("failed to create privileged token acquirer: %w", err)
		return
	}

	// Create the interceptors:
	panicInterceptor, err := recovery.NewGrpcPanicInterceptor().
		SetLogger(b.logger).
		Build()
	if err != nil {
		err = fmt.Errorf("failed to create panic interceptor: %w", err)
		return
	}
	credentialBuilder := auth.NewCredentialInterceptor().
		SetLogger(b.logger).
		SetToken(token).
		SetLoginTokenSource(loginSource).
		SetAcquirer(acquirer).
		SetFlags(b.flags)
	for _, operation := range b.privileged {
		credentialBuilder.AddPrivilegedOperation(operation)
	}
	credentialInterceptor, err := credentialBuilder.Build()
	if err != nil {
		err = fmt.Errorf("failed to create credential interceptor: %w", err)
		return
	}
	loggingInterceptor, err := logging.NewInterceptor().
		SetLogger(b.logger).
		SetFlags(b.flags).
		Build()
	if err != nil {
		err = fmt.Errorf("failed to create logging interceptor: %w", err)
		return
	}

	// Create the gRPC client. The panic interceptor goes first so that it also covers the token sources used by the
	// credential interceptor, and the logging interceptor goes last so that it sees the selected credentials.
	grpcConn, err := network.NewClient().
		SetLogger(b.logger).
		SetFlags(b.flags, network.GrpcClientName).
		SetUserAgent(userAgent).
		AddUnaryInterceptor(panicInterceptor.UnaryClient).
		AddUnaryInterceptor(credentialInterceptor.UnaryClient).
		AddUnaryInterceptor(loggingInterceptor.UnaryClient).
		AddStreamInterceptor(panicInterceptor.StreamClient).
		AddStreamInterceptor(credentialInterceptor.StreamClient).
		AddStreamInterceptor(loggingInterceptor.StreamClient).
		Build()
	if err != nil {
		err = fmt.Errorf("failed to create gRPC client: %w", err)
		return
	}

	// Create the clients for the known services:
	services := map[api.Service]*ServiceClient{}
	for _, service := range api.Services() {
		services[service] = newServiceClient(service, grpcConn)
	}

	// Create and populate the object:
	result = &Client{
		logger:      b.logger,
		grpcConn:    grpcConn,
		acquirer:    acquirer,
		interceptor: credentialInterceptor,
		services:    services,
	}
	return
}

func (b *ClientBuilder) createAcquirer() (result *auth.TokenAcquirer, err error) {
	builder := auth.NewTokenAcquirer().
		SetLogger(b.logger)
	if b.privilegedServer == "" && b.flags != nil && !b.flags.Changed(auth.TokenAcquirerServerFlagName) {
		var baseURL string
		baseURL, err = network.GrpcClientBaseURL(b.flags, network.GrpcClientName)
		if err != nil {
			err = fmt.Errorf(
				"privileged token server isn't set and can't be calculated from the gRPC server: %w",
				err,
			)
			return
		}
		builder.SetServerURL(baseURL)
	}
	builder.SetFlags(b.flags)
	if b.privilegedServer != "" {
		builder.SetServerURL(b.privilegedServer)
	}
	result, err = builder.Build()
	return
}

// Packages returns the client for the core packages service.
func (c *Client) Packages() *ServiceClient {
	return c.Service(api.PackagesService)
}

// Repositories returns the client for the core repositories service.
func (c *Client) Repositories() *ServiceClient {
	return c.Service(api.RepositoriesService)
}

// Plugins returns the client for the core plugins service.
func (c *Client) Plugins() *ServiceClient {
	return c.Service(api.PluginsService)
}

// Resources returns the client for the resources service.
func (c *Client) Resources() *ServiceClient {
	return c.Service(api.ResourcesService)
}

// HelmPackages returns the client for the packages service of the Helm plugin.
func (c *Client) HelmPackages() *ServiceClient {
	return c.Service(api.HelmPackagesService)
}

// HelmRepositories returns the client for the repositories service of the Helm plugin.
func (c *Client) HelmRepositories() *ServiceClient {
	return c.Service(api.HelmRepositoriesService)
}

// KappControllerPackages returns the client for the packages service of the Carvel plugin.
func (c *Client) KappControllerPackages() *ServiceClient {
	return c.Service(api.KappControllerPackagesService)
}

// KappControllerRepositories returns the client for the repositories service of the Carvel plugin.
func (c *Client) KappControllerRepositories() *ServiceClient {
	return c.Service(api.KappControllerRepositoriesService)
}

// FluxV2Packages returns the client for the packages service of the Flux plugin.
func (c *Client) FluxV2Packages() *ServiceClient {
	return c.Service(api.FluxV2PackagesService)
}

// FluxV2Repositories returns the client for the repositories service of the Flux plugin.
func (c *Client) FluxV2Repositories() *ServiceClient {
	return c.Service(api.FluxV2RepositoriesService)
}

// Service returns the client for the given service. Services that aren't in the list of known services, for example
// those of additional plugins, also work, using the same connection and session.
func (c *Client) Service(service api.Service) *ServiceClient {
	result, ok := c.services[service]
	if ok {
		return result
	}
	return newServiceClient(service, c.grpcConn)
}

// Conn returns the underlying connection. It can be passed to the constructors of generated service clients, and
// calls made with them go through the same interceptors.
func (c *Client) Conn() *grpc.ClientConn {
	return c.grpcConn
}

// ClientMetadata returns the metadata that authenticates a call with the given token, or with the login token when
// the given token is empty. It returns nil when there is neither.
func (c *Client) ClientMetadata(ctx context.Context, token string) metadata.MD {
	if token == "" {
		token = c.interceptor.CallerToken(ctx)
	}
	if token == "" {
		return nil
	}
	return metadata.Pairs(auth.Authorization, fmt.Sprintf("Bearer %s", token))
}

// PrivilegedToken returns the privileged token, waiting for it to be acquired if needed. The cluster is only used if
// the token hasn't been acquired yet, and the default cluster is used when it is empty.
func (c *Client) PrivilegedToken(ctx context.Context, cluster string) (result string, err error) {
	result, err = c.acquirer.Acquire(ctx, cluster, c.interceptor.CallerToken(ctx))
	return
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.grpcConn != nil {
		return c.grpcConn.Close()
	}
	return nil
}

// userAgent is the user agent sent to the server.
const userAgent = "kubeapps-client"
