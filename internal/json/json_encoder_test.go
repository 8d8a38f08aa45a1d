/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package json

import (
	"time"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/innabox/kubeapps-client/internal/api"
)

// plugins creates a response of the plugins service containing the given plugins, each described by a name and
// version pair.
func plugins(pairs ...string) proto.Message {
	response := api.NewGetConfiguredPluginsResponse()
	field := response.Descriptor().Fields().ByName("plugins")
	list := response.Mutable(field).List()
	for i := 0; i+1 < len(pairs); i += 2 {
		list.Append(protoreflect.ValueOfMessage(api.NewPlugin(pairs[i], pairs[i+1])))
	}
	return response
}

var _ = Describe("Encoder", func() {
	Describe("Creation", func() {
		It("Can be created with all the mandatory parameters", func() {
			encoder, err := NewEncoder().
				SetLogger(logger).
				Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(encoder).ToNot(BeNil())
		})

		It("Can't be created without a logger", func() {
			encoder, err := NewEncoder().
				Build()
			Expect(err).To(MatchError("logger is mandatory"))
			Expect(encoder).To(BeNil())
		})

		It("Can't be created with ignored field of wrong type", func() {
			encoder, err := NewEncoder().
				SetLogger(logger).
				AddIgnoredFields(123).
				Build()
			Expect(err).To(MatchError(
				"ignored fields should be strings or protocol buffers field names, but value 0 is of " +
					"type 'int'",
			))
			Expect(encoder).To(BeNil())
		})
	})

	Describe("Regular encoding", func() {
		var encoder *Encoder

		BeforeEach(func() {
			var err error
			encoder, err = NewEncoder().
				SetLogger(logger).
				Build()
			Expect(err).ToNot(HaveOccurred())
		})

		type Case struct {
			Input    proto.Message
			Expected string
		}

		DescribeTable(
			"Encoding success",
			func(c Case) {
				actual, err := encoder.Marshal(c.Input)
				Expect(err).ToNot(HaveOccurred())
				Expect(actual).To(MatchJSON(c.Expected))
			},
			Entry(
				"Nil",
				Case{
					Input:    nil,
					Expected: `{}`,
				},
			),
			Entry(
				"Empty request",
				Case{
					Input:    api.NewGetConfiguredPluginsRequest(),
					Expected: `{}`,
				},
			),
			Entry(
				"Empty response",
				Case{
					Input:    plugins(),
					Expected: `{}`,
				},
			),
			Entry(
				"Empty string",
				Case{
					Input: api.NewPlugin("", "v1alpha1"),
					Expected: `{
						"version": "v1alpha1"
					}`,
				},
			),
			Entry(
				"Single plugin",
				Case{
					Input: api.NewPlugin("helm.packages", "v1alpha1"),
					Expected: `{
						"name": "helm.packages",
						"version": "v1alpha1"
					}`,
				},
			),
			Entry(
				"Multiple plugins",
				Case{
					Input: plugins(
						"helm.packages", "v1alpha1",
						"resources", "v1alpha1",
					),
					Expected: `{
						"plugins": [
							{
								"name": "helm.packages",
								"version": "v1alpha1"
							},
							{
								"name": "resources",
								"version": "v1alpha1"
							}
						]
					}`,
				},
			),
			Entry(
				"Timestamp",
				Case{
					Input:    timestamppb.New(time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)),
					Expected: `"2025-03-04T05:06:07Z"`,
				},
			),
			Entry(
				"Duration",
				Case{
					Input:    durationpb.New(90 * time.Second),
					Expected: `"1m30s"`,
				},
			),
		)

		It("Decodes into generic values", func() {
			actual, err := encoder.Decode(plugins("helm.packages", "v1alpha1"))
			Expect(err).ToNot(HaveOccurred())
			Expect(actual).To(Equal(map[string]any{
				"plugins": []any{
					map[string]any{
						"name":    "helm.packages",
						"version": "v1alpha1",
					},
				},
			}))
		})
	})

	Describe("Ignore fields", func() {
		type Case struct {
			Input    proto.Message
			Ignored  []any
			Expected string
		}

		DescribeTable(
			"Encoding success",
			func(c Case) {
				encoder, err := NewEncoder().
					SetLogger(logger).
					AddIgnoredFields(c.Ignored...).
					Build()
				Expect(err).ToNot(HaveOccurred())
				actual, err := encoder.Marshal(c.Input)
				Expect(err).ToNot(HaveOccurred())
				Expect(actual).To(MatchJSON(c.Expected))
			},
			Entry(
				"Ignore one field",
				Case{
					Input: plugins("helm.packages", "v1alpha1"),
					Ignored: []any{
						"plugins",
					},
					Expected: `{}`,
				},
			),
			Entry(
				"Ignore nested field",
				Case{
					Input: plugins("helm.packages", "v1alpha1"),
					Ignored: []any{
						"version",
					},
					Expected: `{
						"plugins": [
							{
								"name": "helm.packages"
							}
						]
					}`,
				},
			),
			Entry(
				"Ignore two fields",
				Case{
					Input: api.NewPlugin("helm.packages", "v1alpha1"),
					Ignored: []any{
						"name",
						"version",
					},
					Expected: `{}`,
				},
			),
			Entry(
				"Ignore field by protoreflect.Name",
				Case{
					Input: api.NewPlugin("helm.packages", "v1alpha1"),
					Ignored: []any{
						protoreflect.Name("name"),
					},
					Expected: `{
						"version": "v1alpha1"
					}`,
				},
			),
			Entry(
				"Ignore field by protoreflect.FullName",
				Case{
					Input: api.NewPlugin("helm.packages", "v1alpha1"),
					Ignored: []any{
						protoreflect.FullName("kubeappsapis.core.plugins.v1alpha1.Plugin.version"),
					},
					Expected: `{
						"name": "helm.packages"
					}`,
				},
			),
			Entry(
				"Doesn't ignore field if it doesn't match full name",
				Case{
					Input: api.NewPlugin("helm.packages", "v1alpha1"),
					Ignored: []any{
						protoreflect.FullName("kubeappsapis.core.plugins.v1alpha1.Other.version"),
					},
					Expected: `{
						"name": "helm.packages",
						"version": "v1alpha1"
					}`,
				},
			),
			Entry(
				"Converts string to full name if it contains dots",
				Case{
					Input: api.NewPlugin("helm.packages", "v1alpha1"),
					Ignored: []any{
						"kubeappsapis.core.plugins.v1alpha1.Plugin.name",
					},
					Expected: `{
						"version": "v1alpha1"
					}`,
				},
			),
		)
	})
})
