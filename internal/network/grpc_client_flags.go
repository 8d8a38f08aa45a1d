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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// AddGrpcClientFlags adds to the given flag set the flags needed to configure a network client. It receives the name of
// the client and the default server address. For example, to configure an API client:
//
//	network.AddGrpcClientFlags(flags, "API", "localhost:8000")
//
// The name will be converted to lower case to generate a prefix for the flags, and will be used unchanged as a prefix
// for the help text. The above example will result in the following flags:
//
//	--api-server-network string API server network. (default "tcp")
//	--api-server-address string API server address. (default "localhost:8000")
//	--api-server-plaintext      API disable TLS.
//	--api-server-insecure       API disable TLS certificate validation.
//	--api-server-no-alpn        API disable TLS ALPN check.
//	--api-ca-file               API trusted CA file.
//	--api-token                 API token.
//	--api-token-file            API token file.
func AddGrpcClientFlags(flags *pflag.FlagSet, name, addr string) {
	_ = flags.String(
		grpcClientFlagName(name, grpcClientServerNetworkFlagSuffix),
		"tcp",
		fmt.Sprintf("%s server network.", name),
	)
	_ = flags.String(
		grpcClientFlagName(name, grpcClientServerAddrFlagSuffix),
		addr,
		fmt.Sprintf("%s server address.", name),
	)
	_ = flags.Bool(
		grpcClientFlagName(name, grpcClientServerPlaintextFlagSuffix),
		false,
		fmt.Sprintf("%s disable TLS.", name),
	)
	_ = flags.Bool(
		grpcClientFlagName(name, grpcClientServerInsecureFlagSuffix),
		false,
		fmt.Sprintf("%s disable TLS certificate validation.", name),
	)
	_ = flags.Bool(
		grpcClientFlagName(name, grpcClientServerNoALPNFlagSuffix),
		false,
		fmt.Sprintf("%s disable TLS ALPN check.", name),
	)
	_ = flags.StringArray(
		grpcClientFlagName(name, grpcClientCaFileFlagSuffix),
		[]string{},
		fmt.Sprintf("%s trusted CA file.", name),
	)
	_ = flags.String(
		grpcClientFlagName(name, grpcClientTokenFlagSuffix),
		"",
		fmt.Sprintf("%s authentication token.", name),
	)
	_ = flags.String(
		grpcClientFlagName(name, grpcClientTokenFileFlagSuffix),
		"",
		fmt.Sprintf("%s authentication token file.", name),
	)
}

// GrpcClientToken returns the authentication token given with the token or token file flags of the client with the
// given name. It returns an empty string if neither flag has been used.
func GrpcClientToken(flags *pflag.FlagSet, name string) (result string, err error) {
	if flags == nil {
		return
	}
	token, err := flags.GetString(grpcClientFlagName(name, grpcClientTokenFlagSuffix))
	if err != nil {
		return
	}
	tokenFile, err := flags.GetString(grpcClientFlagName(name, grpcClientTokenFileFlagSuffix))
	if err != nil {
		return
	}
	if token != "" && tokenFile != "" {
		err = errors.New("token and token file are incompatible")
		return
	}
	if tokenFile != "" {
		var data []byte
		data, err = os.ReadFile(tokenFile)
		if err != nil {
			err = fmt.Errorf("failed to read token from file '%s': %w", tokenFile, err)
			return
		}
		token = strings.TrimSpace(string(data))
	}
	result = token
	return
}

// GrpcClientBaseURL calculates the URL of the HTTP server that runs in the same address than the gRPC server of the
// client with the given name, for example `https://kubeapps.example.com:443`. This only works for TCP servers.
func GrpcClientBaseURL(flags *pflag.FlagSet, name string) (result string, err error) {
	if flags == nil {
		err = errors.New("flags are mandatory")
		return
	}
	network, err := flags.GetString(grpcClientFlagName(name, grpcClientServerNetworkFlagSuffix))
	if err != nil {
		return
	}
	if network != "tcp" {
		err = fmt.Errorf("base URL can't be calculated for network '%s'", network)
		return
	}
	address, err := flags.GetString(grpcClientFlagName(name, grpcClientServerAddrFlagSuffix))
	if err != nil {
		return
	}
	if address == "" {
		err = errors.New("server address is mandatory")
		return
	}
	plaintext, err := flags.GetBool(grpcClientFlagName(name, grpcClientServerPlaintextFlagSuffix))
	if err != nil {
		return
	}
	scheme := "https"
	if plaintext {
		scheme = "http"
	}
	result = fmt.Sprintf("%s://%s", scheme, address)
	return
}

// Names of the flags:
const (
	grpcClientServerNetworkFlagSuffix   = "server-network"
	grpcClientServerAddrFlagSuffix      = "server-address"
	grpcClientServerPlaintextFlagSuffix = "server-plaintext"
	grpcClientServerInsecureFlagSuffix  = "server-insecure"
	grpcClientServerNoALPNFlagSuffix    = "server-no-alpn"
	grpcClientCaFileFlagSuffix          = "ca-file"
	grpcClientTokenFlagSuffix           = "token"
	grpcClientTokenFileFlagSuffix       = "token-file"
)

// grpcClientFlagName calculates a complete flag name from a client name and a flag name suffix. For example, if the
// client name is 'API' and the flag name suffix is 'server-address' it returns 'api-server-address'.
func grpcClientFlagName(name, suffix string) string {
	return fmt.Sprintf("%s-%s", strings.ToLower(name), suffix)
}
