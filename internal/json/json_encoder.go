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
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// EncoderBuilder is a builder for creating JSON encoders.
type EncoderBuilder struct {
	logger        *slog.Logger
	ignoredFields []any
	jsonNames     bool
}

// Encoder knows how to convert protocol buffers messages to JSON, with the additional capability to omit some fields.
// It works with generated messages and with dynamic messages, as it only uses the reflection interface.
type Encoder struct {
	logger                *slog.Logger
	ignoredFieldNames     map[protoreflect.Name]bool
	ignoredFieldFullNames map[protoreflect.FullName]bool
	jsonNames             bool
	timestampDesc         protoreflect.MessageDescriptor
	durationDesc          protoreflect.MessageDescriptor
	jsonApi               jsoniter.API
}

// NewEncoder creates a builder that can then be used to configure and create a JSON encoder.
func NewEncoder() *EncoderBuilder {
	return &EncoderBuilder{}
}

// SetLogger sets the logger. This is mandatory.
func (b *EncoderBuilder) SetLogger(value *slog.Logger) *EncoderBuilder {
	b.logger = value
	return b
}

// AddIgnoredFields adds a set of fields to be omitted from the generated JSON. The values passed can be of the
// following types:
//
// string - This should be a field name, for example 'reconciliation' and then any field with that name in any object
// will be ignored. If the string contains dots it is used as a full name, like protoreflect.FullName.
//
// protoreflect.Name - Like string.
//
// protoreflect.FullName - This indicates a field of a particular type. For example, if the value is
// 'kubeappsapis.core.plugins.v1alpha1.Plugin.version' then only the 'version' field of the plugin object will be
// ignored.
func (b *EncoderBuilder) AddIgnoredFields(values ...any) *EncoderBuilder {
	b.ignoredFields = append(b.ignoredFields, values...)
	return b
}

// SetJSONNames when set to true makes the encoder use the JSON names of the fields, for example 'availablePackageRef'
// instead of 'available_package_ref'. The default is to use the names of the protocol buffers definition.
func (b *EncoderBuilder) SetJSONNames(value bool) *EncoderBuilder {
	b.jsonNames = value
	return b
}

// Build creates a new encoder using the configuration stored in the builder.
func (b *EncoderBuilder) Build() (result *Encoder, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Get descriptors of well known types:
	var timestamp *timestamppb.Timestamp
	timestampDesc := timestamp.ProtoReflect().Descriptor()
	var duration *durationpb.Duration
	durationDesc := duration.ProtoReflect().Descriptor()

	// Create the JSON API:
	jsonApi := jsoniter.Config{}.Froze()

	// Create the sets of ignored fields:
	ignoredFieldNames := make(map[protoreflect.Name]bool)
	ignoredFieldFullNames := make(map[protoreflect.FullName]bool)
	for i, ignoredField := range b.ignoredFields {
		switch ignoredField := ignoredField.(type) {
		case string:
			if strings.Contains(ignoredField, ".") {
				ignoredFieldFullNames[protoreflect.FullName(ignoredField)] = true
			} else {
				ignoredFieldNames[protoreflect.Name(ignoredField)] = true
			}
		case protoreflect.Name:
			ignoredFieldNames[ignoredField] = true
		case protoreflect.FullName:
			ignoredFieldFullNames[ignoredField] = true
		default:
			err = fmt.Errorf(
				"ignored fields should be strings or protocol buffers field names, but value %d is "+
					"of type '%T'",
				i, ignoredField,
			)
			return
		}
	}

	// Create and populate the object:
	result = &Encoder{
		logger:                b.logger,
		ignoredFieldNames:     ignoredFieldNames,
		ignoredFieldFullNames: ignoredFieldFullNames,
		jsonNames:             b.jsonNames,
		timestampDesc:         timestampDesc,
		durationDesc:          durationDesc,
		jsonApi:               jsonApi,
	}
	return
}

// Marshal generates the JSON representation of the given message. A nil message is encoded as an empty object.
func (e *Encoder) Marshal(object proto.Message) (result []byte, err error) {
	if object == nil {
		result = []byte("{}")
		return
	}
	stream := e.jsonApi.BorrowStream(nil)
	defer e.jsonApi.ReturnStream(stream)
	err = e.marshalMessage(stream, object.ProtoReflect())
	if err != nil {
		return
	}
	err = stream.Flush()
	if err != nil {
		return
	}
	result = bytes.Clone(stream.Buffer())
	return
}

// Decode generates the JSON representation of the given message and then decodes it into generic maps, slices and
// values, which is convenient for queries and for other output formats.
func (e *Encoder) Decode(object proto.Message) (result any, err error) {
	data, err := e.Marshal(object)
	if err != nil {
		return
	}
	err = e.jsonApi.Unmarshal(data, &result)
	return
}

func (e *Encoder) marshalMessage(stream *jsoniter.Stream, message protoreflect.Message) (err error) {
	descriptor := message.Descriptor()
	switch descriptor.FullName() {
	case e.timestampDesc.FullName():
		err = e.marshalTimestamp(stream, message)
		return
	case e.durationDesc.FullName():
		err = e.marshalDuration(stream, message)
		return
	}
	stream.WriteObjectStart()
	if stream.Error != nil {
		err = stream.Error
		return
	}
	first := true
	message.Range(func(field protoreflect.FieldDescriptor, value protoreflect.Value) bool {
		if e.ignoredFieldNames[field.Name()] || e.ignoredFieldFullNames[field.FullName()] {
			return true
		}
		if !first {
			stream.WriteMore()
			if stream.Error != nil {
				err = stream.Error
				return false
			}
		}
		stream.WriteObjectField(e.fieldName(field))
		if stream.Error != nil {
			err = stream.Error
			return false
		}
		err = e.marshalValue(stream, value, field)
		if err != nil {
			return false
		}
		first = false
		return true
	})
	if err != nil {
		return
	}
	stream.WriteObjectEnd()
	err = stream.Error
	return
}

func (e *Encoder) fieldName(field protoreflect.FieldDescriptor) string {
	if e.jsonNames {
		return field.JSONName()
	}
	return field.TextName()
}

func (e *Encoder) marshalValue(stream *jsoniter.Stream, value protoreflect.Value,
	field protoreflect.FieldDescriptor) error {
	switch {
	case field.IsList():
		return e.marshalList(stream, value.List(), field)
	case field.IsMap():
		return e.marshalMap(stream, value.Map(), field)
	default:
		return e.marshalSingle(stream, value, field)
	}
}

func (e *Encoder) marshalSingle(stream *jsoniter.Stream, value protoreflect.Value,
	field protoreflect.FieldDescriptor) error {
	if !value.IsValid() {
		stream.WriteNil()
		return stream.Error
	}
	switch field.Kind() {
	case protoreflect.BoolKind:
		stream.WriteBool(value.Bool())
	case protoreflect.StringKind:
		stream.WriteString(value.String())
	case protoreflect.Int32Kind,
		protoreflect.Sint32Kind,
		protoreflect.Sfixed32Kind:
		stream.WriteInt32(int32(value.Int()))
	case protoreflect.Uint32Kind,
		protoreflect.Fixed32Kind:
		stream.WriteUint32(uint32(value.Uint()))
	case protoreflect.Int64Kind,
		protoreflect.Sint64Kind,
		protoreflect.Uint64Kind,
		protoreflect.Sfixed64Kind,
		protoreflect.Fixed64Kind:
		stream.WriteString(value.String())
	case protoreflect.FloatKind,
		protoreflect.DoubleKind:
		stream.WriteFloat64(value.Float())
	case protoreflect.BytesKind:
		stream.WriteString(base64.StdEncoding.EncodeToString(value.Bytes()))
	case protoreflect.EnumKind:
		enum := value.Enum()
		desc := field.Enum().Values().ByNumber(enum)
		if desc == nil {
			stream.WriteInt32(int32(enum))
		} else {
			stream.WriteString(string(desc.Name()))
		}
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return e.marshalMessage(stream, value.Message())
	default:
		return fmt.Errorf("field '%v' has unknown kind '%v'", field.FullName(), field.Kind())
	}
	return stream.Error
}

func (e *Encoder) marshalList(stream *jsoniter.Stream, list protoreflect.List,
	field protoreflect.FieldDescriptor) error {
	stream.WriteArrayStart()
	if stream.Error != nil {
		return stream.Error
	}
	for i := range list.Len() {
		if i > 0 {
			stream.WriteMore()
			if stream.Error != nil {
				return stream.Error
			}
		}
		err := e.marshalSingle(stream, list.Get(i), field)
		if err != nil {
			return err
		}
	}
	stream.WriteArrayEnd()
	return stream.Error
}

func (e *Encoder) marshalMap(stream *jsoniter.Stream, m protoreflect.Map,
	field protoreflect.FieldDescriptor) (err error) {
	stream.WriteObjectStart()
	if stream.Error != nil {
		err = stream.Error
		return
	}
	first := true
	m.Range(func(key protoreflect.MapKey, value protoreflect.Value) bool {
		if !first {
			stream.WriteMore()
			if stream.Error != nil {
				err = stream.Error
				return false
			}
		}
		stream.WriteObjectField(key.String())
		if stream.Error != nil {
			err = stream.Error
			return false
		}
		err = e.marshalSingle(stream, value, field.MapValue())
		if err != nil {
			return false
		}
		first = false
		return true
	})
	if err != nil {
		return
	}
	stream.WriteObjectEnd()
	return stream.Error
}

// marshalTimestamp writes the timestamp in RFC 3339 format. It uses the reflection interface because the message may
// be dynamic, and then it can't be converted to the generated type.
func (e *Encoder) marshalTimestamp(stream *jsoniter.Stream, message protoreflect.Message) error {
	fields := message.Descriptor().Fields()
	seconds := message.Get(fields.ByName("seconds")).Int()
	nanos := message.Get(fields.ByName("nanos")).Int()
	text := time.Unix(seconds, nanos).UTC().Format(time.RFC3339)
	stream.WriteString(text)
	return stream.Error
}

func (e *Encoder) marshalDuration(stream *jsoniter.Stream, message protoreflect.Message) error {
	fields := message.Descriptor().Fields()
	seconds := message.Get(fields.ByName("seconds")).Int()
	nanos := message.Get(fields.ByName("nanos")).Int()
	value := time.Duration(seconds)*time.Second + time.Duration(nanos)
	stream.WriteString(value.String())
	return stream.Error
}
