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

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Request context", func() {
	DescribeTable(
		"Extracts cluster and namespace from the fragment",
		func(url string, expected RequestContext) {
			Expect(ParseRequestContext(url)).To(Equal(expected))
		},
		Entry(
			"Cluster and namespace",
			"https://example.com/#/c/my-cluster/ns/kubeapps/apps",
			RequestContext{
				Cluster:   "my-cluster",
				Namespace: "kubeapps",
			},
		),
		Entry(
			"Relative URL",
			".../#/c/my-cluster/ns/kubeapps/apps",
			RequestContext{
				Cluster:   "my-cluster",
				Namespace: "kubeapps",
			},
		),
		Entry(
			"No fragment",
			"https://example.com/c/my-cluster/ns/kubeapps/apps",
			RequestContext{},
		),
		Entry(
			"Empty URL",
			"",
			RequestContext{},
		),
		Entry(
			"Only cluster",
			"https://example.com/#/c/my-cluster",
			RequestContext{
				Cluster: "my-cluster",
			},
		),
		Entry(
			"Only namespace",
			"https://example.com/#/ns/my-namespace/apps",
			RequestContext{
				Namespace: "my-namespace",
			},
		),
		Entry(
			"Namespace before cluster",
			"https://example.com/#/ns/my-namespace/c/my-cluster",
			RequestContext{
				Cluster:   "my-cluster",
				Namespace: "my-namespace",
			},
		),
		Entry(
			"Empty values",
			"https://example.com/#/c//ns/",
			RequestContext{},
		),
		Entry(
			"Segments before the fragment are ignored",
			"https://example.com/c/wrong/ns/wrong#/c/right/ns/right",
			RequestContext{
				Cluster:   "right",
				Namespace: "right",
			},
		),
		Entry(
			"Only the first fragment marker counts",
			"https://example.com/#/c/first#/c/second",
			RequestContext{
				Cluster: "first#",
			},
		),
	)

	It("Stores the route in the context", func() {
		ctx := ContextWithRoute(context.Background(), "/c/my-cluster/ns/kubeapps/apps")
		Expect(RouteFromContext(ctx)).To(Equal("/c/my-cluster/ns/kubeapps/apps"))
	})

	It("Returns an empty route if the context doesn't have one", func() {
		Expect(RouteFromContext(context.Background())).To(BeEmpty())
	})
})
