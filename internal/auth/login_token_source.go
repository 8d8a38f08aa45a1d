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
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/oauth2"
)

// LoginTokenSourceBuilder contains the data and logic needed to create the source of the login token of the user.
// Don't create instances of this type directly, use the NewLoginTokenSource function instead.
type LoginTokenSourceBuilder struct {
	logger    *slog.Logger
	token     string
	tokenFile string
}

// loginTokenSource returns the token stored in a file, reading it again every time.
type loginTokenSource struct {
	logger *slog.Logger
	file   string
}

// NewLoginTokenSource creates a builder that can then be used to configure and create a source for the login token
// of the user.
func NewLoginTokenSource() *LoginTokenSourceBuilder {
	return &LoginTokenSourceBuilder{}
}

// SetLogger sets the logger that will be used to write to the log. This is mandatory.
func (b *LoginTokenSourceBuilder) SetLogger(value *slog.Logger) *LoginTokenSourceBuilder {
	b.logger = value
	return b
}

// SetToken sets a fixed login token. This is incompatible with SetTokenFile.
func (b *LoginTokenSourceBuilder) SetToken(value string) *LoginTokenSourceBuilder {
	b.token = value
	return b
}

// SetTokenFile sets the file that contains the login token. The file is read each time that the token is needed, so
// that a new login is used without having to create a new client. This is incompatible with SetToken.
func (b *LoginTokenSourceBuilder) SetTokenFile(value string) *LoginTokenSourceBuilder {
	b.tokenFile = value
	return b
}

// SetFlags sets the command line flags that should be used to configure the source. This is optional.
func (b *LoginTokenSourceBuilder) SetFlags(flags *pflag.FlagSet) *LoginTokenSourceBuilder {
	if flags == nil {
		return b
	}
	if flags.Changed(loginTokenFlagName) {
		value, err := flags.GetString(loginTokenFlagName)
		if err == nil {
			b.SetToken(value)
		}
	}
	if flags.Changed(loginTokenFileFlagName) {
		value, err := flags.GetString(loginTokenFileFlagName)
		if err == nil {
			b.SetTokenFile(value)
		}
	}
	return b
}

// Build uses the data stored in the builder to create a new token source. When neither the token nor the file are
// set the source always returns an empty token, meaning that the user isn't logged in.
func (b *LoginTokenSourceBuilder) Build() (result oauth2.TokenSource, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.token != "" && b.tokenFile != "" {
		err = errors.New("token and token file are incompatible")
		return
	}

	// Create the source:
	if b.tokenFile != "" {
		result = &loginTokenSource{
			logger: b.logger,
			file:   b.tokenFile,
		}
		return
	}
	result = oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: b.token,
	})
	return
}

// Token is the implementation of the oauth2.TokenSource interface.
func (s *loginTokenSource) Token() (result *oauth2.Token, err error) {
	data, err := os.ReadFile(s.file)
	if err != nil {
		err = fmt.Errorf("failed to read login token from file '%s': %w", s.file, err)
		return
	}
	result = &oauth2.Token{
		AccessToken: strings.TrimSpace(string(data)),
	}
	return
}

// loginToken returns the current login token from the source, or an empty string if there is no source, the source
// fails or the token is empty. Failures are written to the log.
func loginToken(ctx context.Context, logger *slog.Logger, source oauth2.TokenSource) string {
	if source == nil {
		return ""
	}
	token, err := source.Token()
	if err != nil {
		logger.ErrorContext(
			ctx,
			"Failed to get login token, will continue without it",
			slog.Any("error", err),
		)
		return ""
	}
	if token == nil {
		return ""
	}
	return token.AccessToken
}
