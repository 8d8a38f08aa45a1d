/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package testing

import (
	"crypto/rand"
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MakeTokenObject generates a service account like token signed with the testing key. The given claims are added
// to the default ones, replacing them when they have the same name. Claims with a nil value are removed.
func MakeTokenObject(claims jwt.MapClaims) *jwt.Token {
	now := time.Now()
	merged := jwt.MapClaims{
		"iss": "kubernetes/serviceaccount",
		"sub": "system:serviceaccount:kubeapps:kubeapps-admin",
		"typ": "Bearer",
		"iat": now.Unix(),
		"exp": now.Add(1 * time.Hour).Unix(),
	}
	for name, value := range claims {
		if value == nil {
			delete(merged, name)
		} else {
			merged[name] = value
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, merged)
	token.Header["kid"] = TokenKeyID
	raw, err := token.SignedString(tokenKey)
	if err != nil {
		panic(err)
	}
	token.Raw = raw
	return token
}

// MakeTokenString generates a token with the given type and life, and returns its serialized form. A zero life means
// that the token doesn't expire.
func MakeTokenString(typ string, life time.Duration) string {
	claims := jwt.MapClaims{
		"typ": typ,
	}
	if life == 0 {
		claims["exp"] = nil
	} else {
		claims["exp"] = time.Now().Add(life).Unix()
	}
	return MakeTokenObject(claims).Raw
}

// TokenKeyID is the identifier of the key used to sign the tokens generated for tests.
const TokenKeyID = "test"

// tokenKey is the key used to sign the tokens generated for tests.
var tokenKey = func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}()
