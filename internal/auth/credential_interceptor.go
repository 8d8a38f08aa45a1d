/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"
	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/innabox/kubeapps-client/internal/api"
)

// Authorization is the name of the metadata key that carries the bearer token.
const Authorization = "authorization"

// Request is the view of an outgoing call that the credential interceptor works with. The URL is the target of the
// connection joined with the full method name, followed by the route of the hosting application as fragment when
// the context contains one. The header is a copy of the outgoing metadata; the interceptor modifies it and then
// forwards it as the outgoing metadata of the call.
type Request struct {
	URL       string
	Operation api.Operation
	Header    metadata.MD
}

// CredentialInterceptorBuilder contains the data and logic needed to build the interceptor that decides which bearer
// token is attached to each outgoing call. Don't create instances of this type directly, use the
// NewCredentialInterceptor function instead.
type CredentialInterceptorBuilder struct {
	logger      *slog.Logger
	token       string
	loginSource oauth2.TokenSource
	acquirer    *TokenAcquirer
	privileged  []api.Operation
	wait        bool
}

// CredentialInterceptor contains the data needed by the interceptor.
type CredentialInterceptor struct {
	logger      *slog.Logger
	token       string
	loginSource oauth2.TokenSource
	acquirer    *TokenAcquirer
	privileged  map[api.Operation]bool
	wait        bool
}

// NewCredentialInterceptor creates a builder that can then be used to configure and create a credential interceptor.
func NewCredentialInterceptor() *CredentialInterceptorBuilder {
	return &CredentialInterceptorBuilder{}
}

// SetLogger sets the logger that will be used to write to the log. This is mandatory.
func (b *CredentialInterceptorBuilder) SetLogger(value *slog.Logger) *CredentialInterceptorBuilder {
	b.logger = value
	return b
}

// SetToken sets the bearer token given explicitly when the client was created. When set it takes precedence over
// the login token for all the calls that aren't privileged. This is optional.
func (b *CredentialInterceptorBuilder) SetToken(value string) *CredentialInterceptorBuilder {
	b.token = value
	return b
}

// SetLoginTokenSource sets the source of the login token of the user. It is used when no explicit token has been set.
// This is optional.
func (b *CredentialInterceptorBuilder) SetLoginTokenSource(value oauth2.TokenSource) *CredentialInterceptorBuilder {
	b.loginSource = value
	return b
}

// SetAcquirer sets the object that obtains and caches the privileged token. This is mandatory.
func (b *CredentialInterceptorBuilder) SetAcquirer(value *TokenAcquirer) *CredentialInterceptorBuilder {
	b.acquirer = value
	return b
}

// AddPrivilegedOperation adds an operation that will be authenticated with the privileged token. This may be called
// multiple times. When it isn't called the only privileged operation is the installation of packages with the core
// packages service.
func (b *CredentialInterceptorBuilder) AddPrivilegedOperation(value api.Operation) *CredentialInterceptorBuilder {
	b.privileged = append(b.privileged, value)
	return b
}

// SetWaitForPrivilegedToken when set to true makes privileged calls wait till the privileged token has been acquired,
// and fail with the `Unauthenticated` code if it can't be acquired. The default is false, and then privileged calls
// are sent with whatever token is cached at that moment, or without authorization header if there is none yet.
func (b *CredentialInterceptorBuilder) SetWaitForPrivilegedToken(value bool) *CredentialInterceptorBuilder {
	b.wait = value
	return b
}

// SetFlags sets the command line flags that should be used to configure the interceptor. This is optional.
func (b *CredentialInterceptorBuilder) SetFlags(flags *pflag.FlagSet) *CredentialInterceptorBuilder {
	if flags == nil {
		return b
	}
	if flags.Changed(credentialInterceptorWaitFlagName) {
		value, err := flags.GetBool(credentialInterceptorWaitFlagName)
		if err == nil {
			b.SetWaitForPrivilegedToken(value)
		}
	}
	return b
}

// Build uses the data stored in the builder to create and configure a new interceptor.
func (b *CredentialInterceptorBuilder) Build() (result *CredentialInterceptor, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.acquirer == nil {
		err = errors.New("token acquirer is mandatory")
		return
	}

	// Prepare the set of privileged operations:
	privileged := map[api.Operation]bool{}
	for _, operation := range b.privileged {
		if operation.Service == "" || operation.Method == "" {
			err = fmt.Errorf("privileged operation '%s' should have service and method", operation)
			return
		}
		privileged[operation] = true
	}
	if len(privileged) == 0 {
		privileged[api.CreateInstalledPackage] = true
	}

	// Create and populate the object:
	result = &CredentialInterceptor{
		logger:      b.logger,
		token:       b.token,
		loginSource: b.loginSource,
		acquirer:    b.acquirer,
		privileged:  privileged,
		wait:        b.wait,
	}
	return
}

// UnaryClient is the unary client interceptor function.
func (i *CredentialInterceptor) UnaryClient(ctx context.Context, method string, request, reply any,
	conn *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	ctx, err := i.resolve(ctx, i.target(conn), method)
	if err != nil {
		return err
	}
	return invoker(ctx, method, request, reply, conn, opts...)
}

// StreamClient is the stream client interceptor function.
func (i *CredentialInterceptor) StreamClient(ctx context.Context, desc *grpc.StreamDesc, conn *grpc.ClientConn,
	method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	ctx, err := i.resolve(ctx, i.target(conn), method)
	if err != nil {
		return nil, err
	}
	return streamer(ctx, desc, conn, method, opts...)
}

// CallerToken returns the token that identifies the caller: the explicitly configured token if there is one, or else
// the current login token. It returns an empty string if there is none.
func (i *CredentialInterceptor) CallerToken(ctx context.Context) string {
	if i.token != "" {
		return i.token
	}
	return loginToken(ctx, i.logger, i.loginSource)
}

// resolve selects the token for the call and returns the context with the resulting outgoing metadata.
func (i *CredentialInterceptor) resolve(ctx context.Context, target, method string) (result context.Context,
	err error) {
	request := i.makeRequest(ctx, target, method)
	requestContext := ParseRequestContext(request.URL)
	callerToken := i.CallerToken(ctx)

	// Make sure that the privileged token is being acquired. This doesn't wait for the result.
	if i.acquirer.Token() == "" {
		i.acquirer.Start(ctx, requestContext.Cluster, callerToken)
	}

	// Set the header:
	if i.privileged[request.Operation] {
		err = i.setPrivilegedHeader(ctx, request, requestContext, callerToken)
		if err != nil {
			return
		}
	} else if callerToken != "" {
		request.Header.Set(Authorization, fmt.Sprintf("Bearer %s", callerToken))
	}

	result = metadata.NewOutgoingContext(ctx, request.Header)
	return
}

// setPrivilegedHeader replaces the authorization header with the privileged token.
//
// Unless waiting has been explicitly enabled this uses the token that is cached when the call is made. The first
// privileged calls can therefore go out before the acquisition finishes, and then they are sent without authorization
// header and the server decides with the permissions of an anonymous user.
func (i *CredentialInterceptor) setPrivilegedHeader(ctx context.Context, request *Request,
	requestContext RequestContext, callerToken string) error {
	token := i.acquirer.Token()
	if token == "" && i.wait {
		var err error
		token, err = i.acquirer.Acquire(ctx, requestContext.Cluster, callerToken)
		if err != nil {
			i.logger.ErrorContext(
				ctx,
				"Privileged call rejected because the privileged token isn't available",
				slog.String("method", request.Operation.FullMethod()),
				slog.Any("error", err),
			)
			return grpcstatus.Errorf(
				grpccodes.Unauthenticated,
				"Privileged token for method '%s' isn't available",
				request.Operation.FullMethod(),
			)
		}
	}
	if token == "" {
		i.logger.WarnContext(
			ctx,
			"Sending privileged call without privileged token because it hasn't been acquired yet",
			slog.String("method", request.Operation.FullMethod()),
			slog.String("state", i.acquirer.State().String()),
		)
		request.Header.Delete(Authorization)
		return nil
	}
	request.Header.Set(Authorization, fmt.Sprintf("Bearer %s", token))
	return nil
}

func (i *CredentialInterceptor) makeRequest(ctx context.Context, target, method string) *Request {
	url := target + method
	route := RouteFromContext(ctx)
	if route != "" {
		url = url + "#" + route
	}
	operation, err := api.ParseOperation(method)
	if err != nil {
		i.logger.DebugContext(
			ctx,
			"Can't decode method, will be considered not privileged",
			slog.String("method", method),
			slog.Any("error", err),
		)
	}
	header, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		header = metadata.MD{}
	}
	return &Request{
		URL:       url,
		Operation: operation,
		Header:    header,
	}
}

func (i *CredentialInterceptor) target(conn *grpc.ClientConn) string {
	if conn == nil {
		return ""
	}
	return conn.Target()
}
