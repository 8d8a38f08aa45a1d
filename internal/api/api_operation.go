/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package api

import (
	"fmt"
	"strings"
)

// Operation identifies a gRPC method by the service that it belongs to and the name of the method. It is comparable,
// so operations can be compared with `==` and used as map keys.
type Operation struct {
	Service Service
	Method  string
}

// CreateInstalledPackage is the operation of the core packages service that installs a package. Calls to this
// operation are authenticated with the privileged service account token instead of the token of the user.
var CreateInstalledPackage = Operation{
	Service: PackagesService,
	Method:  "CreateInstalledPackage",
}

// ParseOperation decodes a full gRPC method name, like `/my_package.MyService/MyMethod`, into an operation. The leading
// slash is optional.
func ParseOperation(fullMethod string) (result Operation, err error) {
	text := strings.TrimPrefix(fullMethod, "/")
	slash := strings.LastIndex(text, "/")
	if slash <= 0 || slash == len(text)-1 {
		err = fmt.Errorf("method '%s' isn't a valid full gRPC method name", fullMethod)
		return
	}
	result = Operation{
		Service: Service(text[:slash]),
		Method:  text[slash+1:],
	}
	return
}

// FullMethod returns the full gRPC method name of the operation, including the leading slash.
func (o Operation) FullMethod() string {
	return o.Service.Method(o.Method)
}

// String returns the full gRPC method name of the operation.
func (o Operation) String() string {
	return o.FullMethod()
}
