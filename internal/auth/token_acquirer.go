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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"
	"golang.org/x/sync/singleflight"
	authenticationv1 "k8s.io/api/authentication/v1"
	"k8s.io/apimachinery/pkg/util/validation"
)

// AcquisitionState describes where the acquisition of the privileged token is.
type AcquisitionState int

const (
	// AcquisitionUnstarted means that no acquisition has been attempted yet.
	AcquisitionUnstarted AcquisitionState = iota

	// AcquisitionInFlight means that a request to the credential endpoint is in progress.
	AcquisitionInFlight

	// AcquisitionCached means that the token has been obtained and will be reused from now on.
	AcquisitionCached

	// AcquisitionFailed means that the last attempt failed. This isn't terminal, the next trigger tries again.
	AcquisitionFailed
)

func (s AcquisitionState) String() string {
	switch s {
	case AcquisitionUnstarted:
		return "unstarted"
	case AcquisitionInFlight:
		return "in-flight"
	case AcquisitionCached:
		return "cached"
	case AcquisitionFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// AcquisitionResult is the outcome of an acquisition, delivered to all the callers that share it.
type AcquisitionResult struct {
	Token string
	Err   error
}

// TokenAcquirerBuilder contains the data and logic needed to create a token acquirer. Don't create instances of this
// type directly, use the NewTokenAcquirer function instead.
type TokenAcquirerBuilder struct {
	logger         *slog.Logger
	serverURL      string
	namespace      string
	serviceAccount string
	defaultCluster string
	httpClient     *http.Client
	timeout        time.Duration
	caFiles        []string
	insecure       bool
}

// TokenAcquirer obtains the token of the privileged service account from the credential endpoint and caches it. It
// guarantees that concurrent callers share a single request to the endpoint. Don't create instances of this type
// directly, use the NewTokenAcquirer function instead.
type TokenAcquirer struct {
	logger         *slog.Logger
	serverURL      string
	namespace      string
	serviceAccount string
	defaultCluster string
	httpClient     *http.Client
	timeout        time.Duration
	group          *singleflight.Group
	lock           *sync.Mutex
	token          string
	state          AcquisitionState
	flights        uint64
}

// NewTokenAcquirer creates a builder that can then be used to configure and create a token acquirer.
func NewTokenAcquirer() *TokenAcquirerBuilder {
	return &TokenAcquirerBuilder{
		namespace:      DefaultPrivilegedNamespace,
		serviceAccount: DefaultPrivilegedServiceAccount,
		defaultCluster: DefaultCluster,
		timeout:        DefaultPrivilegedTokenTimeout,
	}
}

// SetLogger sets the logger that will be used to write to the log. This is mandatory.
func (b *TokenAcquirerBuilder) SetLogger(value *slog.Logger) *TokenAcquirerBuilder {
	b.logger = value
	return b
}

// SetServerURL sets the base URL of the server that issues the service account tokens, for example
// `http://10.1.2.3:31004`. The path of the endpoint is appended to it. This is mandatory.
func (b *TokenAcquirerBuilder) SetServerURL(value string) *TokenAcquirerBuilder {
	b.serverURL = value
	return b
}

// SetNamespace sets the namespace of the privileged service account. The default is `kubeapps`.
func (b *TokenAcquirerBuilder) SetNamespace(value string) *TokenAcquirerBuilder {
	b.namespace = value
	return b
}

// SetServiceAccount sets the name of the privileged service account. The default is `kubeapps-admin`.
func (b *TokenAcquirerBuilder) SetServiceAccount(value string) *TokenAcquirerBuilder {
	b.serviceAccount = value
	return b
}

// SetDefaultCluster sets the cluster that will be used when the request that triggers the acquisition doesn't
// contain a cluster. The default is `default`.
func (b *TokenAcquirerBuilder) SetDefaultCluster(value string) *TokenAcquirerBuilder {
	b.defaultCluster = value
	return b
}

// SetHTTPClient sets the HTTP client used to send requests to the credential endpoint. This is optional, and when it
// is set the CA files and insecure settings are ignored.
func (b *TokenAcquirerBuilder) SetHTTPClient(value *http.Client) *TokenAcquirerBuilder {
	b.httpClient = value
	return b
}

// SetTimeout sets the maximum time that an acquisition can take. The default is thirty seconds, zero means no limit.
func (b *TokenAcquirerBuilder) SetTimeout(value time.Duration) *TokenAcquirerBuilder {
	b.timeout = value
	return b
}

// AddCaFile adds a file containing CA certificates trusted when connecting to the credential endpoint with TLS. This
// is optional, by default the CAs trusted by the system are used.
func (b *TokenAcquirerBuilder) AddCaFile(value string) *TokenAcquirerBuilder {
	if value != "" {
		b.caFiles = append(b.caFiles, value)
	}
	return b
}

// SetInsecure disables verification of the TLS certificate of the credential endpoint. Don't use this in production
// environments. The default is false.
func (b *TokenAcquirerBuilder) SetInsecure(value bool) *TokenAcquirerBuilder {
	b.insecure = value
	return b
}

// SetFlags sets the command line flags that should be used to configure the acquirer. This is optional.
func (b *TokenAcquirerBuilder) SetFlags(flags *pflag.FlagSet) *TokenAcquirerBuilder {
	if flags == nil {
		return b
	}
	if flags.Changed(TokenAcquirerServerFlagName) {
		value, err := flags.GetString(TokenAcquirerServerFlagName)
		if err == nil {
			b.SetServerURL(value)
		}
	}
	if flags.Changed(tokenAcquirerNamespaceFlagName) {
		value, err := flags.GetString(tokenAcquirerNamespaceFlagName)
		if err == nil {
			b.SetNamespace(value)
		}
	}
	if flags.Changed(tokenAcquirerServiceAccountFlagName) {
		value, err := flags.GetString(tokenAcquirerServiceAccountFlagName)
		if err == nil {
			b.SetServiceAccount(value)
		}
	}
	if flags.Changed(tokenAcquirerDefaultClusterFlagName) {
		value, err := flags.GetString(tokenAcquirerDefaultClusterFlagName)
		if err == nil {
			b.SetDefaultCluster(value)
		}
	}
	if flags.Changed(tokenAcquirerTimeoutFlagName) {
		value, err := flags.GetDuration(tokenAcquirerTimeoutFlagName)
		if err == nil {
			b.SetTimeout(value)
		}
	}
	if flags.Changed(tokenAcquirerCaFileFlagName) {
		values, err := flags.GetStringArray(tokenAcquirerCaFileFlagName)
		if err == nil {
			for _, value := range values {
				b.AddCaFile(value)
			}
		}
	}
	if flags.Changed(tokenAcquirerInsecureFlagName) {
		value, err := flags.GetBool(tokenAcquirerInsecureFlagName)
		if err == nil {
			b.SetInsecure(value)
		}
	}
	return b
}

// Build uses the data stored in the builder to create and configure a new token acquirer.
func (b *TokenAcquirerBuilder) Build() (result *TokenAcquirer, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.serverURL == "" {
		err = errors.New("server URL is mandatory")
		return
	}
	parsed, err := url.Parse(b.serverURL)
	if err != nil {
		err = fmt.Errorf("server URL '%s' isn't a valid URL: %w", b.serverURL, err)
		return
	}
	if !strings.EqualFold(parsed.Scheme, "http") && !strings.EqualFold(parsed.Scheme, "https") {
		err = fmt.Errorf("server URL '%s' should use the HTTP or HTTPS protocol", b.serverURL)
		return
	}
	if parsed.Host == "" {
		err = fmt.Errorf("server URL '%s' doesn't contain a host", b.serverURL)
		return
	}
	if b.namespace == "" {
		err = errors.New("namespace is mandatory")
		return
	}
	problems := validation.IsDNS1123Label(b.namespace)
	if len(problems) > 0 {
		err = fmt.Errorf("namespace '%s' isn't valid: %s", b.namespace, strings.Join(problems, ", "))
		return
	}
	if b.serviceAccount == "" {
		err = errors.New("service account is mandatory")
		return
	}
	problems = validation.IsDNS1123Subdomain(b.serviceAccount)
	if len(problems) > 0 {
		err = fmt.Errorf(
			"service account '%s' isn't valid: %s",
			b.serviceAccount, strings.Join(problems, ", "),
		)
		return
	}
	if b.timeout < 0 {
		err = errors.New("timeout must be zero or positive")
		return
	}

	// Create the HTTP client, unless one has been explicitly provided:
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient, err = b.createHTTPClient()
		if err != nil {
			return
		}
	}

	// Create and populate the object:
	result = &TokenAcquirer{
		logger:         b.logger,
		serverURL:      strings.TrimSuffix(b.serverURL, "/"),
		namespace:      b.namespace,
		serviceAccount: b.serviceAccount,
		defaultCluster: b.defaultCluster,
		httpClient:     httpClient,
		timeout:        b.timeout,
		group:          &singleflight.Group{},
		lock:           &sync.Mutex{},
		state:          AcquisitionUnstarted,
	}
	return
}

func (b *TokenAcquirerBuilder) createHTTPClient() (result *http.Client, err error) {
	caPool, err := x509.SystemCertPool()
	if err != nil {
		return
	}
	if len(b.caFiles) > 0 {
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
	}
	result = &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:            caPool,
				InsecureSkipVerify: b.insecure,
			},
		},
	}
	return
}

// Token returns the cached privileged token, or an empty string if it hasn't been acquired yet. It never waits.
func (a *TokenAcquirer) Token() string {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.token
}

// State returns the current state of the acquisition.
func (a *TokenAcquirer) State() AcquisitionState {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.state
}

// Start makes sure that there is an acquisition in progress and returns a channel where its single result will be
// delivered. If the token is already cached it returns nil. If there is already an acquisition in progress the
// returned channel is attached to it, so no new request is sent to the credential endpoint.
//
// The cluster is the one extracted from the request that triggers the acquisition, and the default cluster is used
// when it is empty. The caller token is the bearer token used to authenticate to the credential endpoint.
//
// The acquisition isn't cancelled when the given context is cancelled, it only uses the values of the context.
func (a *TokenAcquirer) Start(ctx context.Context, cluster, callerToken string) <-chan AcquisitionResult {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.token != "" {
		return nil
	}
	if cluster == "" {
		cluster = a.defaultCluster
	}

	// Each flight gets its own key, and the state tells if the current one is still running. A flight that already
	// finished may still be registered in the group for a moment, and using a new key makes sure that nobody joins it.
	if a.state != AcquisitionInFlight {
		a.flights++
		a.state = AcquisitionInFlight
	}
	key := fmt.Sprintf("%s-%d", tokenAcquirerFlightKey, a.flights)
	ctx = context.WithoutCancel(ctx)
	flight := a.group.DoChan(key, func() (any, error) {
		return a.acquire(ctx, cluster, callerToken)
	})
	results := make(chan AcquisitionResult, 1)
	go func() {
		result := <-flight
		token, _ := result.Val.(string)
		results <- AcquisitionResult{
			Token: token,
			Err:   result.Err,
		}
		close(results)
	}()
	return results
}

// Acquire returns the cached token, or waits for the acquisition to finish, starting it if needed. It returns an
// error if the acquisition fails or if the context is done before it finishes. Note that in the later case the
// acquisition continues in the background.
func (a *TokenAcquirer) Acquire(ctx context.Context, cluster, callerToken string) (result string, err error) {
	results := a.Start(ctx, cluster, callerToken)
	if results == nil {
		result = a.Token()
		return
	}
	select {
	case outcome := <-results:
		result, err = outcome.Token, outcome.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	return
}

// acquire is the function executed inside the single flight group. It sends the request and updates the cache and
// the state with the outcome. The Start method moves the state to in flight, and only this function moves it out.
func (a *TokenAcquirer) acquire(ctx context.Context, cluster, callerToken string) (result string,
	err error) {
	a.logger.DebugContext(
		ctx,
		"Starting acquisition of privileged token",
		slog.String("cluster", cluster),
		slog.String("namespace", a.namespace),
		slog.String("service_account", a.serviceAccount),
	)
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	token, err := a.fetch(ctx, cluster, callerToken)
	a.lock.Lock()
	defer a.lock.Unlock()
	if err != nil {
		a.state = AcquisitionFailed
		a.logger.ErrorContext(
			ctx,
			"Failed to acquire privileged token",
			slog.String("cluster", cluster),
			slog.Any("error", err),
		)
		return
	}
	a.token = token
	a.state = AcquisitionCached
	a.logger.InfoContext(
		ctx,
		"Acquired privileged token",
		slog.String("cluster", cluster),
		slog.String("namespace", a.namespace),
		slog.String("service_account", a.serviceAccount),
		slog.String("subject", a.tokenSubject(token)),
		slog.String("!token", token),
	)
	result = token
	return
}

func (a *TokenAcquirer) fetch(ctx context.Context, cluster, callerToken string) (result string, err error) {
	addr := a.tokenURL(cluster)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		err = &CredentialAcquisitionFailedError{
			URL:   addr,
			Cause: err,
		}
		return
	}
	request.Header.Set("Accept", "application/json")
	if callerToken != "" {
		request.Header.Set("Authorization", fmt.Sprintf("Bearer %s", callerToken))
	}
	response, err := a.httpClient.Do(request)
	if err != nil {
		err = &CredentialAcquisitionFailedError{
			URL:   addr,
			Cause: err,
		}
		return
	}
	defer func() {
		err := response.Body.Close()
		if err != nil {
			a.logger.ErrorContext(
				ctx,
				"Failed to close response body",
				slog.String("url", addr),
				slog.Any("error", err),
			)
		}
	}()
	if response.StatusCode < 200 || response.StatusCode > 299 {
		err = &CredentialAcquisitionFailedError{
			URL:        addr,
			StatusCode: response.StatusCode,
		}
		return
	}
	result, err = a.readToken(addr, response.Body)
	return
}

// readToken extracts the token from the body of the response, which uses the format of the Kubernetes token request
// API: `{"status": {"token": "..."}}`.
func (a *TokenAcquirer) readToken(addr string, reader io.Reader) (result string, err error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		err = &CredentialAcquisitionFailedError{
			URL:   addr,
			Cause: err,
		}
		return
	}
	var tokenRequest authenticationv1.TokenRequest
	err = tokenAcquirerJSON.Unmarshal(data, &tokenRequest)
	if err != nil {
		err = &MalformedCredentialResponseError{
			URL:   addr,
			Cause: err,
		}
		return
	}
	if tokenRequest.Status.Token == "" {
		err = &MalformedCredentialResponseError{
			URL: addr,
		}
		return
	}
	result = tokenRequest.Status.Token
	return
}

func (a *TokenAcquirer) tokenURL(cluster string) string {
	return fmt.Sprintf(
		"%s/k8s/api/v1/clusters/%s/namespaces/%s/serviceaccounts/%s/token",
		a.serverURL,
		url.PathEscape(cluster),
		url.PathEscape(a.namespace),
		url.PathEscape(a.serviceAccount),
	)
}

// tokenSubject returns the subject of the token if it is a JSON web token, or an empty string otherwise. The
// signature isn't verified, the value is only used for the log.
func (a *TokenAcquirer) tokenSubject(token string) string {
	parsed, _, err := tokenAcquirerParser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return subject
}

// Defaults for the privileged service account:
const (
	DefaultPrivilegedNamespace      = "kubeapps"
	DefaultPrivilegedServiceAccount = "kubeapps-admin"
	DefaultCluster                  = "default"
	DefaultPrivilegedTokenTimeout   = 30 * time.Second
)

// tokenAcquirerFlightKey is the prefix of the keys used in the single flight group. There is only one privileged token
// per acquirer, so all the callers of the same flight share the same key.
const tokenAcquirerFlightKey = "token"

var tokenAcquirerJSON = jsoniter.ConfigCompatibleWithStandardLibrary

var tokenAcquirerParser = jwt.NewParser()
