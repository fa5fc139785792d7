package logger_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tonearmlabs/tonearm/pkg/logger"
)

var _ = Describe("New", func() {
	It("should write text records to the given writer", func() {
		var buf bytes.Buffer
		log := logger.New(logger.WithWriter(&buf))

		log.Info("hello", "item_id", 7)
		Expect(buf.String()).To(ContainSubstring("hello"))
		Expect(buf.String()).To(ContainSubstring("item_id=7"))
	})

	It("should suppress debug records by default", func() {
		var buf bytes.Buffer
		log := logger.New(logger.WithWriter(&buf))

		log.Debug("quiet")
		Expect(buf.String()).To(BeEmpty())
	})

	It("should emit debug records with WithDebug", func() {
		var buf bytes.Buffer
		log := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))

		log.Debug("loud")
		Expect(buf.String()).To(ContainSubstring("loud"))
	})

	It("should emit parseable records with WithJSON", func() {
		var buf bytes.Buffer
		log := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))

		log.Info("ingested", "item_id", 7, "path", "a.wav")

		var record map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &record)).To(Succeed())
		Expect(record["msg"]).To(Equal("ingested"))
		Expect(record["item_id"]).To(BeNumerically("==", 7))
		Expect(record["path"]).To(Equal("a.wav"))
	})

	It("should prefer the pretty handler when both flavors are requested", func() {
		var buf bytes.Buffer
		log := logger.New(logger.WithPretty(true), logger.WithJSON(true), logger.WithWriter(&buf))

		log.Info("styled")
		Expect(buf.String()).To(ContainSubstring("styled"))
		Expect(json.Valid(buf.Bytes())).To(BeFalse())
	})
})

var _ = Describe("Nop", func() {
	It("should discard everything without panicking", func() {
		log := logger.Nop()
		log.Info("dropped")
		log.Error("dropped too")
	})
})

var _ = Describe("Multi", func() {
	It("should dispatch one record to every logger", func() {
		var text, jsonBuf bytes.Buffer
		log := logger.Multi(
			logger.New(logger.WithWriter(&text)),
			logger.New(logger.WithJSON(true), logger.WithWriter(&jsonBuf)),
		)

		log.Info("ingest finished", "ingested", 3)

		Expect(text.String()).To(ContainSubstring("ingest finished"))

		var record map[string]any
		Expect(json.Unmarshal(jsonBuf.Bytes(), &record)).To(Succeed())
		Expect(record["ingested"]).To(BeNumerically("==", 3))
	})

	It("should respect each handler's own level", func() {
		var quiet, verbose bytes.Buffer
		log := logger.Multi(
			logger.New(logger.WithWriter(&quiet)),
			logger.New(logger.WithWriter(&verbose), logger.WithDebug(true)),
		)

		log.Debug("detail")
		Expect(quiet.String()).To(BeEmpty())
		Expect(verbose.String()).To(ContainSubstring("detail"))
	})

	It("should carry attrs added with With", func() {
		var buf bytes.Buffer
		log := logger.Multi(logger.New(logger.WithWriter(&buf))).With("provider", "vggish")

		log.Info("opened")
		Expect(buf.String()).To(ContainSubstring("provider=vggish"))
	})
})
