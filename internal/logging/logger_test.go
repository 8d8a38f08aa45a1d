/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"
)

var _ = Describe("Logger", func() {
	var buffer *bytes.Buffer

	BeforeEach(func() {
		buffer = &bytes.Buffer{}
	})

	It("Uses the info level by default", func() {
		logger, err := NewLogger().
			SetWriter(buffer).
			Build()
		Expect(err).ToNot(HaveOccurred())
		logger.Debug("Hidden")
		logger.Info("Visible")
		lines := parseLines(buffer)
		Expect(lines).To(HaveLen(1))
		Expect(lines[0]).To(HaveKeyWithValue("msg", "Visible"))
	})

	It("Rejects an invalid level", func() {
		_, err := NewLogger().
			SetWriter(buffer).
			SetLevel("loud").
			Build()
		Expect(err).To(HaveOccurred())
	})

	It("Adds custom fields", func() {
		logger, err := NewLogger().
			SetWriter(buffer).
			AddField("component", "client").
			Build()
		Expect(err).ToNot(HaveOccurred())
		logger.Info("Hello")
		lines := parseLines(buffer)
		Expect(lines).To(HaveLen(1))
		Expect(lines[0]).To(HaveKeyWithValue("component", "client"))
	})

	It("Redacts fields whose name starts with an exclamation mark", func() {
		logger, err := NewLogger().
			SetWriter(buffer).
			Build()
		Expect(err).ToNot(HaveOccurred())
		logger.Info("Token", slog.String("!token", "my-secret"))
		lines := parseLines(buffer)
		Expect(lines).To(HaveLen(1))
		Expect(lines[0]).To(HaveKeyWithValue("token", "***"))
		Expect(buffer.String()).ToNot(ContainSubstring("my-secret"))
	})

	It("Preserves redacted fields when redaction is disabled", func() {
		logger, err := NewLogger().
			SetWriter(buffer).
			SetRedact(false).
			Build()
		Expect(err).ToNot(HaveOccurred())
		logger.Info("Token", slog.String("!token", "my-secret"))
		lines := parseLines(buffer)
		Expect(lines).To(HaveLen(1))
		Expect(lines[0]).To(HaveKeyWithValue("token", "my-secret"))
	})

	It("Replaces a field added twice", func() {
		logger, err := NewLogger().
			SetWriter(buffer).
			AddField("component", "client").
			AddField("component", "server").
			Build()
		Expect(err).ToNot(HaveOccurred())
		logger.Info("Hello")
		Expect(buffer.String()).To(ContainSubstring(`"component":"server"`))
		Expect(buffer.String()).ToNot(ContainSubstring(`"component":"client"`))
	})

	It("Replaces the process identifier field", func() {
		flags := pflag.NewFlagSet("", pflag.ContinueOnError)
		AddFlags(flags)
		err := flags.Parse([]string{"--log-field", "%p"})
		Expect(err).ToNot(HaveOccurred())
		logger, err := NewLogger().
			SetWriter(buffer).
			SetFlags(flags).
			Build()
		Expect(err).ToNot(HaveOccurred())
		logger.Info("Hello")
		lines := parseLines(buffer)
		Expect(lines).To(HaveLen(1))
		Expect(lines[0]).To(HaveKeyWithValue("pid", BeNumerically("==", os.Getpid())))
	})

	DescribeTable(
		"Redacts credentials",
		func(attr slog.Attr, key string, expected string) {
			logger, err := NewLogger().
				SetWriter(buffer).
				Build()
			Expect(err).ToNot(HaveOccurred())
			logger.Info("Credential", attr)
			lines := parseLines(buffer)
			Expect(lines).To(HaveLen(1))
			Expect(lines[0]).To(HaveKeyWithValue(key, expected))
			Expect(buffer.String()).ToNot(ContainSubstring("eyJhbGciOi"))
		},
		Entry(
			"Authorization field",
			slog.String("authorization", "eyJhbGciOi"),
			"authorization",
			"***",
		),
		Entry(
			"Token field in upper case",
			slog.String("Token", "eyJhbGciOi"),
			"Token",
			"***",
		),
		Entry(
			"Bearer value in a field with an ordinary name",
			slog.String("header", "Bearer eyJhbGciOi"),
			"header",
			"Bearer ***",
		),
		Entry(
			"Lower case bearer scheme",
			slog.String("value", "bearer eyJhbGciOi"),
			"value",
			"bearer ***",
		),
		Entry(
			"Basic value",
			slog.String("value", "Basic eyJhbGciOi"),
			"value",
			"Basic ***",
		),
	)

	It("Doesn't redact ordinary values", func() {
		logger, err := NewLogger().
			SetWriter(buffer).
			Build()
		Expect(err).ToNot(HaveOccurred())
		logger.Info("Acquired", slog.String("cluster", "bearer"), slog.String("state", "cached state"))
		lines := parseLines(buffer)
		Expect(lines).To(HaveLen(1))
		Expect(lines[0]).To(HaveKeyWithValue("cluster", "bearer"))
		Expect(lines[0]).To(HaveKeyWithValue("state", "cached state"))
	})

	It("Keeps credentials when redaction is disabled", func() {
		logger, err := NewLogger().
			SetWriter(buffer).
			SetRedact(false).
			Build()
		Expect(err).ToNot(HaveOccurred())
		logger.Info("Credential", slog.String("authorization", "Bearer eyJhbGciOi"))
		lines := parseLines(buffer)
		Expect(lines).To(HaveLen(1))
		Expect(lines[0]).To(HaveKeyWithValue("authorization", "Bearer eyJhbGciOi"))
	})

	It("Fails if the log file can't be opened", func() {
		flags := pflag.NewFlagSet("", pflag.ContinueOnError)
		AddFlags(flags)
		err := flags.Parse([]string{"--log-file", "/nonexistent/dir/client.log"})
		Expect(err).ToNot(HaveOccurred())
		_, err = NewLogger().
			SetFlags(flags).
			Build()
		Expect(err).To(MatchError(ContainSubstring("/nonexistent/dir/client.log")))
	})

	It("Renders errors", func() {
		logger, err := NewLogger().
			SetWriter(buffer).
			Build()
		Expect(err).ToNot(HaveOccurred())
		logger.Error("Failed", slog.Any("error", errors.New("boom")))
		Expect(buffer.String()).To(ContainSubstring("boom"))
	})

	It("Writes to the standard error stream by default when flags are used", func() {
		flags := pflag.NewFlagSet("", pflag.ContinueOnError)
		AddFlags(flags)
		err := flags.Parse([]string{})
		Expect(err).ToNot(HaveOccurred())
		out := &bytes.Buffer{}
		logger, err := NewLogger().
			SetOut(out).
			SetErr(buffer).
			SetFlags(flags).
			Build()
		Expect(err).ToNot(HaveOccurred())
		logger.Info("Hello")
		Expect(out.Len()).To(BeZero())
		Expect(parseLines(buffer)).To(HaveLen(1))
	})

	It("Takes configuration from the flags", func() {
		flags := pflag.NewFlagSet("", pflag.ContinueOnError)
		AddFlags(flags)
		err := flags.Parse([]string{
			"--log-level", "debug",
			"--log-field", "cluster=default",
			"--log-redact=false",
		})
		Expect(err).ToNot(HaveOccurred())
		logger, err := NewLogger().
			SetWriter(buffer).
			SetFlags(flags).
			Build()
		Expect(err).ToNot(HaveOccurred())
		logger.Debug("Token", slog.String("!token", "my-secret"))
		lines := parseLines(buffer)
		Expect(lines).To(HaveLen(1))
		Expect(lines[0]).To(HaveKeyWithValue("cluster", "default"))
		Expect(lines[0]).To(HaveKeyWithValue("token", "my-secret"))
	})
})
