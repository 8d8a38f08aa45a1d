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
	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

var _ = Describe("Plugins messages", func() {
	It("Uses the names of the server", func() {
		request := NewGetConfiguredPluginsRequest()
		Expect(string(request.Descriptor().FullName())).To(Equal(
			"kubeappsapis.core.plugins.v1alpha1.GetConfiguredPluginsRequest",
		))
		response := NewGetConfiguredPluginsResponse()
		Expect(string(response.Descriptor().FullName())).To(Equal(
			"kubeappsapis.core.plugins.v1alpha1.GetConfiguredPluginsResponse",
		))
		Expect(GetConfiguredPlugins.FullMethod()).To(Equal(
			"/kubeappsapis.core.plugins.v1alpha1.PluginsService/GetConfiguredPlugins",
		))
	})

	It("Can be encoded and decoded", func() {
		// Create a response with two plugins:
		response := NewGetConfiguredPluginsResponse()
		field := response.Descriptor().Fields().ByName("plugins")
		list := response.Mutable(field).List()
		list.Append(protoreflect.ValueOfMessage(NewPlugin("helm.packages", "v1alpha1")))
		list.Append(protoreflect.ValueOfMessage(NewPlugin("fluxv2.packages", "v1alpha1")))

		// Encode and decode it:
		data, err := proto.Marshal(response)
		Expect(err).ToNot(HaveOccurred())
		decoded := NewGetConfiguredPluginsResponse()
		err = proto.Unmarshal(data, decoded)
		Expect(err).ToNot(HaveOccurred())

		// Check the result:
		plugins := decoded.Get(field).List()
		Expect(plugins.Len()).To(Equal(2))
		first := plugins.Get(0).Message()
		nameField := first.Descriptor().Fields().ByName("name")
		versionField := first.Descriptor().Fields().ByName("version")
		Expect(first.Get(nameField).String()).To(Equal("helm.packages"))
		Expect(first.Get(versionField).String()).To(Equal("v1alpha1"))
		Expect(plugins.Get(1).Message().Get(nameField).String()).To(Equal("fluxv2.packages"))
	})
})
