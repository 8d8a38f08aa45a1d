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
	"github.com/spf13/pflag"

	"github.com/innabox/kubeapps-client/internal/auth"
	"github.com/innabox/kubeapps-client/internal/network"
)

// AddFlags adds to the given flag set the flags needed to configure the client: the connection to the gRPC server,
// the login token, and the acquisition and use of the privileged token.
func AddFlags(flags *pflag.FlagSet) {
	network.AddGrpcClientFlags(flags, network.GrpcClientName, network.DefaultGrpcAddress)
	auth.AddLoginTokenSourceFlags(flags)
	auth.AddTokenAcquirerFlags(flags)
	auth.AddCredentialInterceptorFlags(flags)
}
