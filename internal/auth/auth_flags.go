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

import "github.com/spf13/pflag"

// AddTokenAcquirerFlags adds the flags related to the acquisition of the privileged token to the given flag set.
func AddTokenAcquirerFlags(set *pflag.FlagSet) {
	_ = set.String(
		TokenAcquirerServerFlagName,
		"",
		"Base URL of the server that issues the privileged service account tokens.",
	)
	_ = set.String(
		tokenAcquirerNamespaceFlagName,
		DefaultPrivilegedNamespace,
		"Namespace of the privileged service account.",
	)
	_ = set.String(
		tokenAcquirerServiceAccountFlagName,
		DefaultPrivilegedServiceAccount,
		"Name of the privileged service account.",
	)
	_ = set.String(
		tokenAcquirerDefaultClusterFlagName,
		DefaultCluster,
		"Cluster used to request the privileged token when the request doesn't specify one.",
	)
	_ = set.Duration(
		tokenAcquirerTimeoutFlagName,
		DefaultPrivilegedTokenTimeout,
		"Maximum time to wait for the privileged token server.",
	)
	_ = set.StringArray(
		tokenAcquirerCaFileFlagName,
		[]string{},
		"File containing the CA used to verify the TLS certificate of the privileged token server.",
	)
	_ = set.Bool(
		tokenAcquirerInsecureFlagName,
		false,
		"Disable verification of the TLS certificate of the privileged token server.",
	)
}

// AddLoginTokenSourceFlags adds the flags related to the login token of the user to the given flag set.
func AddLoginTokenSourceFlags(set *pflag.FlagSet) {
	_ = set.String(
		loginTokenFlagName,
		"",
		"Login token of the user.",
	)
	_ = set.String(
		loginTokenFileFlagName,
		"",
		"File containing the login token of the user. It is read again for each request.",
	)
}

// AddCredentialInterceptorFlags adds the flags related to the credential interceptor to the given flag set.
func AddCredentialInterceptorFlags(set *pflag.FlagSet) {
	_ = set.Bool(
		credentialInterceptorWaitFlagName,
		false,
		"Wait for the privileged token before sending privileged calls, instead of sending them with the "+
			"token that is cached at that moment.",
	)
}

// TokenAcquirerServerFlagName is the name of the flag that sets the base URL of the privileged token server.
const TokenAcquirerServerFlagName = "privileged-token-server"

// Names of the flags:
const (
	tokenAcquirerNamespaceFlagName      = "privileged-token-namespace"
	tokenAcquirerServiceAccountFlagName = "privileged-token-service-account"
	tokenAcquirerDefaultClusterFlagName = "privileged-token-default-cluster"
	tokenAcquirerTimeoutFlagName        = "privileged-token-timeout"
	tokenAcquirerCaFileFlagName         = "privileged-token-ca-file"
	tokenAcquirerInsecureFlagName       = "privileged-token-insecure"
	credentialInterceptorWaitFlagName   = "privileged-token-wait"
	loginTokenFlagName                  = "login-token"
	loginTokenFileFlagName              = "login-token-file"
)
