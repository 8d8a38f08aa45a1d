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
	"regexp"
	"strings"
)

// RequestContext contains the cluster and namespace that the hosting application embeds in the fragment of the
// request URL. Empty fields mean that the URL doesn't contain that information.
type RequestContext struct {
	Cluster   string
	Namespace string
}

// ParseRequestContext extracts the cluster and namespace from the fragment of the given URL. For example, for
// `https://example.com/#/c/my-cluster/ns/kubeapps/apps` it returns `my-cluster` and `kubeapps`. If the URL has no
// fragment, or the fragment doesn't contain the segments, the corresponding fields are empty.
func ParseRequestContext(url string) (result RequestContext) {
	_, fragment, _ := strings.Cut(url, "#")
	matches := requestContextClusterRE.FindStringSubmatch(fragment)
	if matches != nil {
		result.Cluster = matches[1]
	}
	matches = requestContextNamespaceRE.FindStringSubmatch(fragment)
	if matches != nil {
		result.Namespace = matches[1]
	}
	return
}

// ContextWithRoute returns a context that carries the route of the hosting application, for example
// `/c/my-cluster/ns/kubeapps/apps`. The credential interceptor appends it as the fragment of the request URL of calls
// made with that context.
func ContextWithRoute(parent context.Context, route string) context.Context {
	return context.WithValue(parent, routeContextKey, route)
}

// RouteFromContext returns the route stored in the context, or an empty string if there is none.
func RouteFromContext(ctx context.Context) string {
	route, _ := ctx.Value(routeContextKey).(string)
	return route
}

type contextKey int

const (
	routeContextKey contextKey = iota
)

// Regular expressions used to extract the cluster and namespace from the URL fragment:
var (
	requestContextClusterRE   = regexp.MustCompile(`/c/([^/]+)`)
	requestContextNamespaceRE = regexp.MustCompile(`/ns/([^/]+)`)
)
