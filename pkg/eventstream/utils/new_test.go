package eventstreamutils_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tonearmlabs/tonearm/pkg/eventstream"
	"github.com/tonearmlabs/tonearm/pkg/eventstream/nop"
	eventstreamutils "github.com/tonearmlabs/tonearm/pkg/eventstream/utils"
	"github.com/tonearmlabs/tonearm/pkg/logger"
)

var _ = Describe("NewPublisher", func() {
	It("should default to the no-op publisher", func() {
		publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
			Logger: logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(publisher).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("should build the no-op publisher for provider none", func() {
		publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
			ProviderType: "none",
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(publisher).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("should require brokers for the kafka publisher", func() {
		_, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
			ProviderType: "kafka",
			Logger:       logger.Nop(),
		})
		Expect(err).To(HaveOccurred())
	})

	It("should build the kafka publisher when brokers are given", func() {
		publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
			ProviderType: "kafka",
			Brokers:      []string{"localhost:9092"},
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(publisher.Close()).To(Succeed())
	})

	It("should reject unknown provider types", func() {
		_, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
			ProviderType: "rabbitmq",
			Logger:       logger.Nop(),
		})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("rabbitmq"))
	})
})

var _ = Describe("Nop publisher", func() {
	It("should accept events and reject nil", func() {
		publisher := nop.NewPublisher()
		Expect(publisher.PublishItemIngested(context.Background(), &eventstream.ItemIngestedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeItemIngested,
			ItemID:        1,
		})).To(Succeed())

		err := publisher.PublishItemIngested(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilEvent))
		Expect(publisher.Close()).To(Succeed())
	})
})
