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
	"errors"
	"fmt"
)

// CredentialAcquisitionFailedError indicates that the privileged service account token couldn't be obtained from the
// credential endpoint, either because the request failed or because the endpoint responded with a status code that
// isn't 2xx. Nothing is cached when this happens, and the next call will try again.
type CredentialAcquisitionFailedError struct {
	URL        string
	StatusCode int
	Cause      error
}

func (e *CredentialAcquisitionFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to acquire service account token from '%s': %v", e.URL, e.Cause)
	}
	return fmt.Sprintf(
		"failed to acquire service account token from '%s': status code %d",
		e.URL, e.StatusCode,
	)
}

func (e *CredentialAcquisitionFailedError) Unwrap() error {
	return e.Cause
}

// MalformedCredentialResponseError indicates that the credential endpoint responded with success but the body
// doesn't contain the token. It is handled exactly like CredentialAcquisitionFailedError.
type MalformedCredentialResponseError struct {
	URL   string
	Cause error
}

func (e *MalformedCredentialResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("response from '%s' doesn't contain a valid token: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("response from '%s' doesn't contain a token", e.URL)
}

func (e *MalformedCredentialResponseError) Unwrap() error {
	return e.Cause
}

// IsCredentialAcquisitionFailed returns true if the error, or any error in its chain, indicates that acquiring the
// privileged token failed. That includes malformed responses.
func IsCredentialAcquisitionFailed(err error) bool {
	var failedErr *CredentialAcquisitionFailedError
	if errors.As(err, &failedErr) {
		return true
	}
	return IsMalformedCredentialResponse(err)
}

// IsMalformedCredentialResponse returns true if the error, or any error in its chain, indicates that the credential
// endpoint returned a response without a token.
func IsMalformedCredentialResponse(err error) bool {
	var malformedErr *MalformedCredentialResponseError
	return errors.As(err, &malformedErr)
}
