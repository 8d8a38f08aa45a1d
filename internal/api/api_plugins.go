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

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// GetConfiguredPlugins is the operation of the core plugins service that returns the list of backend plugins enabled
// in the server.
var GetConfiguredPlugins = Operation{
	Service: PluginsService,
	Method:  "GetConfiguredPlugins",
}

// NewGetConfiguredPluginsRequest creates an empty request message for the GetConfiguredPlugins operation.
func NewGetConfiguredPluginsRequest() *dynamicpb.Message {
	return dynamicpb.NewMessage(pluginsMessage("GetConfiguredPluginsRequest"))
}

// NewGetConfiguredPluginsResponse creates an empty response message for the GetConfiguredPlugins operation. The
// response has a repeated `plugins` field, and each plugin has `name` and `version` fields.
func NewGetConfiguredPluginsResponse() *dynamicpb.Message {
	return dynamicpb.NewMessage(pluginsMessage("GetConfiguredPluginsResponse"))
}

// NewPlugin creates a plugin message with the given name and version.
func NewPlugin(name, version string) *dynamicpb.Message {
	result := dynamicpb.NewMessage(pluginsMessage("Plugin"))
	fields := result.Descriptor().Fields()
	result.Set(fields.ByName("name"), protoreflect.ValueOfString(name))
	result.Set(fields.ByName("version"), protoreflect.ValueOfString(version))
	return result
}

func pluginsMessage(name protoreflect.Name) protoreflect.MessageDescriptor {
	result := pluginsFile.Messages().ByName(name)
	if result == nil {
		panic(fmt.Sprintf("message '%s' isn't defined", name))
	}
	return result
}

// pluginsFile describes the subset of the messages of the core plugins service used by the client. The Kubeapps
// generated code isn't a dependency, so the messages are created dynamically from this descriptor. The names and
// numbers match those of the server, so the encoding is the same.
var pluginsFile = func() protoreflect.FileDescriptor {
	stringField := func(name string, number int32) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			JsonName: proto.String(name),
			Number:   proto.Int32(number),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
		}
	}
	fileProto := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("kubeappsapis/core/plugins/v1alpha1/plugins.proto"),
		Package: proto.String("kubeappsapis.core.plugins.v1alpha1"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("GetConfiguredPluginsRequest"),
			},
			{
				Name: proto.String("GetConfiguredPluginsResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:     proto.String("plugins"),
						JsonName: proto.String("plugins"),
						Number:   proto.Int32(1),
						Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
						Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
						TypeName: proto.String(".kubeappsapis.core.plugins.v1alpha1.Plugin"),
					},
				},
			},
			{
				Name: proto.String("Plugin"),
				Field: []*descriptorpb.FieldDescriptorProto{
					stringField("name", 1),
					stringField("version", 2),
				},
			},
		},
	}
	result, err := protodesc.NewFile(fileProto, &protoregistry.Files{})
	if err != nil {
		panic(err)
	}
	return result
}()
