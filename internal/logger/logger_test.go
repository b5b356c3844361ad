package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/born-ml/instruct/internal/logger"
)

func decodeLine(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
	return parsed
}

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("writes text records by default", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("rendered", "version", "v1", "tokens", 21)

			out := buf.String()
			Expect(out).To(ContainSubstring("msg=rendered"))
			Expect(out).To(ContainSubstring("version=v1"))
			Expect(out).To(ContainSubstring("tokens=21"))
		})

		It("drops debug records unless debug is enabled", func() {
			var quiet, verbose bytes.Buffer
			logger.New(logger.WithWriter(&quiet), logger.WithDebug(false)).Debug("trace")
			logger.New(logger.WithWriter(&verbose), logger.WithDebug(true)).Debug("trace")

			Expect(quiet.String()).To(BeEmpty())
			Expect(verbose.String()).To(ContainSubstring("trace"))
		})

		It("honours an explicit level", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithLevel(slog.LevelWarn))
			l.Info("ignored")
			l.Warn("kept")

			Expect(buf.String()).NotTo(ContainSubstring("ignored"))
			Expect(buf.String()).To(ContainSubstring("kept"))
		})

		It("writes JSON records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.Info("decoded", "count", 11)

			parsed := decodeLine(&buf)
			Expect(parsed["msg"]).To(Equal("decoded"))
			Expect(parsed["count"]).To(BeNumerically("==", 11))
		})

		It("prefers JSON over pretty output", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithPretty(true))
			l.Info("both")

			Expect(decodeLine(&buf)["msg"]).To(Equal("both"))
		})

		It("writes pretty records through charmbracelet/log", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithDebug(true))
			l.Debug("listening", "addr", ":8080")

			Expect(buf.String()).To(ContainSubstring("listening"))
			Expect(buf.String()).To(ContainSubstring(":8080"))
		})

		It("includes the source location when asked", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithSource(true))
			l.Info("where")

			Expect(decodeLine(&buf)).To(HaveKey("source"))
		})

		It("fans out to several writers", func() {
			var a, b bytes.Buffer
			logger.New(logger.WithWriters(&a, &b)).Info("twice")

			Expect(a.String()).To(ContainSubstring("twice"))
			Expect(b.String()).To(ContainSubstring("twice"))
		})

		It("nests grouped attributes", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.WithGroup("request").Info("served", "path", "/v1/render")

			group, ok := decodeLine(&buf)["request"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(group["path"]).To(Equal("/v1/render"))
		})
	})

	Describe("Nop", func() {
		It("is disabled at every level", func() {
			l := logger.Nop()
			for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelError} {
				Expect(l.Handler().Enabled(context.Background(), level)).To(BeFalse())
			}
			Expect(func() { l.With("k", "v").WithGroup("g").Error("msg") }).NotTo(Panic())
		})
	})

	Describe("Multi", func() {
		It("delivers each record to every logger", func() {
			var text, js bytes.Buffer
			l := logger.Multi(
				logger.New(logger.WithWriter(&text)),
				logger.New(logger.WithWriter(&js), logger.WithJSON(true)),
			)
			l.Info("server started", "listen", ":8080")

			Expect(text.String()).To(ContainSubstring("server started"))
			Expect(decodeLine(&js)["listen"]).To(Equal(":8080"))
		})

		It("respects each logger's level", func() {
			var info, debug bytes.Buffer
			l := logger.Multi(
				logger.New(logger.WithWriter(&info)),
				logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
			)
			l.Debug("render trace")

			Expect(info.String()).To(BeEmpty())
			Expect(debug.String()).To(ContainSubstring("render trace"))
		})

		It("carries attributes and groups to children", func() {
			var buf bytes.Buffer
			l := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)))
			l.With("component", "api").WithGroup("req").Info("done", "status", 200)

			parsed := decodeLine(&buf)
			Expect(parsed["component"]).To(Equal("api"))
			Expect(parsed["req"]).To(HaveKeyWithValue("status", BeNumerically("==", 200)))
		})

		It("is disabled when every child is", func() {
			l := logger.Multi(logger.Nop(), logger.Nop())
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		})
	})
})
