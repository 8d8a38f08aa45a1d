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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	experimentalcredentials "google.golang.org/grpc/experimental/credentials"
)

// GrpcClientBuilder contains the data and logic needed to create a gRPC client. Don't create instances of this object
// directly, use the NewClient function instead.
type GrpcClientBuilder struct {
	logger             *slog.Logger
	serverNetwork      string
	serverAddress      string
	serverPlaintext    bool
	serverInsecure     bool
	serverNoALPN       bool
	caFiles            []string
	userAgent          string
	unaryInterceptors  []grpc.UnaryClientInterceptor
	streamInterceptors []grpc.StreamClientInterceptor
}

// NewClient creates a builder that can then used to configure and create a gRPC client.
func NewClient() *GrpcClientBuilder {
	return &GrpcClientBuilder{
		serverNetwork: "tcp",
	}
}

// SetLogger sets the logger that the client will use to send messages to the log. This is mandatory.
func (b *GrpcClientBuilder) SetLogger(value *slog.Logger) *GrpcClientBuilder {
	b.logger = value
	return b
}

// SetFlags sets the command line flags that should be used to configure the client.
//
// The name is used to select the options when there are multiple clients. For example, if it is 'API' then it will only
// take into accounts the flags starting with '--api'.
//
// This is optional.
func (b *GrpcClientBuilder) SetFlags(flags *pflag.FlagSet, name string) *GrpcClientBuilder {
	if flags == nil {
		return b
	}

	var (
		flag string
		err  error
	)
	failure := func() {
		b.logger.Error(
			"Failed to get flag value",
			slog.String("flag", flag),
			slog.Any("error", err),
		)
	}

	// Server network:
	flag = grpcClientFlagName(name, grpcClientServerNetworkFlagSuffix)
	serverNetworkValue, err := flags.GetString(flag)
	if err != nil {
		failure()
	} else {
		b.SetServerNetwork(serverNetworkValue)
	}

	// Server address:
	flag = grpcClientFlagName(name, grpcClientServerAddrFlagSuffix)
	serverAddrValue, err := flags.GetString(flag)
	if err != nil {
		failure()
	} else {
		b.SetServerAddress(serverAddrValue)
	}

	// Server plaintext:
	flag = grpcClientFlagName(name, grpcClientServerPlaintextFlagSuffix)
	serverPlaintextValue, err := flags.GetBool(flag)
	if err != nil {
		failure()
	} else {
		b.SetServerPlaintext(serverPlaintextValue)
	}

	// Server insecure:
	flag = grpcClientFlagName(name, grpcClientServerInsecureFlagSuffix)
	serverInsecureValue, err := flags.GetBool(flag)
	if err != nil {
		failure()
	} else {
		b.SetServerInsecure(serverInsecureValue)
	}

	// Server ALPN:
	flag = grpcClientFlagName(name, grpcClientServerNoALPNFlagSuffix)
	serverNoALPNValue, err := flags.GetBool(flag)
	if err != nil {
		failure()
	} else {
		b.SetServerNoALPN(serverNoALPNValue)
	}

	// CA file:
	flag = grpcClientFlagName(name, grpcClientCaFileFlagSuffix)
	caFileValues, err := flags.GetStringArray(flag)
	if err != nil {
		failure()
	} else {
		for _, caFileValue := range caFileValues {
			b.AddCaFile(caFileValue)
		}
	}

	return b
}

// SetServerNetwork sets the server network, either `tcp` or `unix`. The default is `tcp`.
func (b *GrpcClientBuilder) SetServerNetwork(value string) *GrpcClientBuilder {
	b.serverNetwork = value
	return b
}

// SetServerAddress sets the server address. This is mandatory.
func (b *GrpcClientBuilder) SetServerAddress(value string) *GrpcClientBuilder {
	b.serverAddress = value
	return b
}

// SetServerPlaintext when set to true configures the client for a server that doesn't use TLS. The default is false.
func (b *GrpcClientBuilder) SetServerPlaintext(value bool) *GrpcClientBuilder {
	b.serverPlaintext = value
	return b
}

// SetServerInsecure when set to true configures the client for use TLS but to not verify the certificate presented
// by the server. This shouldn't be used in production environments. The default is false.
func (b *GrpcClientBuilder) SetServerInsecure(value bool) *GrpcClientBuilder {
	b.serverInsecure = value
	return b
}

// SetServerNoALPN when set to true disables the ALPN check of the TLS handshake. Since version 1.67 of the gRPC
// library the server must negotiate HTTP/2 with ALPN, and some ingress controllers that sit in front of the Kubeapps
// APIs server don't do that. The default is false.
func (b *GrpcClientBuilder) SetServerNoALPN(value bool) *GrpcClientBuilder {
	b.serverNoALPN = value
	return b
}

// AddCaFile adds a file containing CA certificates trusted by the client. This is optional, by default all the CAs
// trusted by the system are also trusted by the client.
func (b *GrpcClientBuilder) AddCaFile(value string) *GrpcClientBuilder {
	if value != "" {
		b.caFiles = append(b.caFiles, value)
	}
	return b
}

// SetUserAgent sets the user agent sent to the server. This is optional.
func (b *GrpcClientBuilder) SetUserAgent(value string) *GrpcClientBuilder {
	b.userAgent = value
	return b
}

// AddUnaryInterceptor adds an interceptor that will be called for unary calls. Interceptors are called in the order
// they were added, the first one added is the outermost.
func (b *GrpcClientBuilder) AddUnaryInterceptor(value grpc.UnaryClientInterceptor) *GrpcClientBuilder {
	b.unaryInterceptors = append(b.unaryInterceptors, value)
	return b
}

// AddStreamInterceptor adds an interceptor that will be called for streaming calls. Interceptors are called in the
// order they were added, the first one added is the outermost.
func (b *GrpcClientBuilder) AddStreamInterceptor(value grpc.StreamClientInterceptor) *GrpcClientBuilder {
	b.streamInterceptors = append(b.streamInterceptors, value)
	return b
}

// Build uses the data stored in the builder to create a new network client.
func (b *GrpcClientBuilder) Build() (result *grpc.ClientConn, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.serverNetwork == "" {
		err = errors.New("server network is mandatory")
		return
	}
	if b.serverAddress == "" {
		err = errors.New("server address is mandatory")
		return
	}
	for i, interceptor := range b.unaryInterceptors {
		if interceptor == nil {
			err = fmt.Errorf("unary interceptor %d is nil", i)
			return
		}
	}
	for i, interceptor := range b.streamInterceptors {
		if interceptor == nil {
			err = fmt.Errorf("stream interceptor %d is nil", i)
			return
		}
	}

	// Calculate the endpoint:
	var endpoint string
	switch b.serverNetwork {
	case "tcp":
		endpoint = fmt.Sprintf("dns:///%s", b.serverAddress)
	case "unix":
		if filepath.IsAbs(b.serverAddress) {
			endpoint = fmt.Sprintf("unix://%s", b.serverAddress)
		} else {
			endpoint = fmt.Sprintf("unix:%s", b.serverAddress)
		}
	default:
		err = fmt.Errorf("unknown network '%s'", b.serverNetwork)
		return
	}

	// Set the TLS options:
	var options []grpc.DialOption
	transportCredentials, err := b.transportCredentials()
	if err != nil {
		return
	}
	options = append(options, grpc.WithTransportCredentials(transportCredentials))

	// Set the interceptors:
	if len(b.unaryInterceptors) > 0 {
		options = append(options, grpc.WithChainUnaryInterceptor(b.unaryInterceptors...))
	}
	if len(b.streamInterceptors) > 0 {
		options = append(options, grpc.WithChainStreamInterceptor(b.streamInterceptors...))
	}

	// Set the user agent:
	if b.userAgent != "" {
		options = append(options, grpc.WithUserAgent(b.userAgent))
	}

	// Create the client:
	result, err = grpc.NewClient(endpoint, options...)
	if err != nil {
		return
	}
	b.logger.Debug(
		"Created gRPC client",
		slog.String("endpoint", endpoint),
		slog.Bool("plaintext", b.serverPlaintext),
		slog.Int("unary_interceptors", len(b.unaryInterceptors)),
		slog.Int("stream_interceptors", len(b.streamInterceptors)),
	)
	return
}

func (b *GrpcClientBuilder) transportCredentials() (result credentials.TransportCredentials, err error) {
	if b.serverPlaintext {
		result = insecure.NewCredentials()
		return
	}
	tlsConfig := &tls.Config{}
	if b.serverInsecure {
		tlsConfig.InsecureSkipVerify = true
	}
	if len(b.caFiles) > 0 {
		var caPool *x509.CertPool
		caPool, err = x509.SystemCertPool()
		if err != nil {
			return
		}
		caPool = caPool.Clone()
		for _, caFile := range b.caFiles {
			var data []byte
			data, err = os.ReadFile(caFile)
			if err != nil {
				err = fmt.Errorf("failed to read CA file '%s': %w", caFile, err)
				return
			}
			ok := caPool.AppendCertsFromPEM(data)
			if !ok {
				err = fmt.Errorf("file '%s' doesn't contain any CA certificate", caFile)
				return
			}
			b.logger.Debug(
				"Loaded CA file",
				slog.String("file", caFile),
			)
		}
		tlsConfig.RootCAs = caPool
	}
	if b.serverNoALPN {
		result = experimentalcredentials.NewTLSWithALPNDisabled(tlsConfig)
	} else {
		result = credentials.NewTLS(tlsConfig)
	}
	return
}

// Common client names:
const (
	GrpcClientName = "gRPC"
)

// DefaultGrpcAddress is the address where the Kubeapps APIs server listens by default.
const DefaultGrpcAddress = "localhost:50051"
