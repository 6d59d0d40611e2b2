package container

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlinks/internal/analytics"
	analyticsstore "github.com/serroba/shortlinks/internal/analytics/store"
	"github.com/serroba/shortlinks/internal/messaging"
	"go.uber.org/zap"
)

// AnalyticsConsumerGroup is the Redis streams consumer group of cmd/consumer.
const AnalyticsConsumerGroup = "analytics"

// PublisherGroupPackage provides the analytics publishers. With analytics
// disabled events are dropped and no broker is contacted.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: do.MustInvoke[*redis.Client](i),
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(i, func(i *do.Injector) (*analytics.Publishers, error) {
		if !do.MustInvoke[*Options](i).Analytics {
			return analytics.DiscardPublishers(), nil
		}

		return analytics.NewPublishers(do.MustInvoke[*messaging.PublisherGroup](i).Publisher()), nil
	})
}

// AnalyticsStorePackage provides the sink consumed link events are written to.
func AnalyticsStorePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (analytics.Store, error) {
		return analyticsstore.NewLogging(do.MustInvoke[*zap.Logger](i)), nil
	})
}

// ConsumerGroupPackage provides the analytics consumers of the link event
// streams.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        do.MustInvoke[*redis.Client](i),
			ConsumerGroup: AnalyticsConsumerGroup,
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create subscriber: %w", err)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(analytics.NewConsumers(subscriber, do.MustInvoke[analytics.Store](i), logger)...)

		return group, nil
	})
}

// ConsumerPackages registers everything cmd/consumer needs on top of the
// options value.
func ConsumerPackages(i *do.Injector) {
	LoggerPackage(i)
	RedisPackage(i)
	AnalyticsStorePackage(i)
	ConsumerGroupPackage(i)
}
