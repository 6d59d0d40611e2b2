package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortlinks/internal/messaging"
)

// Publishers groups the typed publish functions for every analytics topic.
type Publishers struct {
	Created  messaging.Publish[LinkCreatedEvent]
	Accessed messaging.Publish[LinkAccessedEvent]
	Deleted  messaging.Publish[LinkDeletedEvent]
}

// NewPublishers binds each event type to its topic on publisher.
func NewPublishers(publisher message.Publisher) *Publishers {
	return &Publishers{
		Created:  messaging.NewPublishFunc[LinkCreatedEvent](publisher, TopicLinkCreated),
		Accessed: messaging.NewPublishFunc[LinkAccessedEvent](publisher, TopicLinkAccessed),
		Deleted:  messaging.NewPublishFunc[LinkDeletedEvent](publisher, TopicLinkDeleted),
	}
}

// DiscardPublishers drops every event, for running without a broker.
func DiscardPublishers() *Publishers {
	return &Publishers{
		Created:  messaging.Discard[LinkCreatedEvent](),
		Accessed: messaging.Discard[LinkAccessedEvent](),
		Deleted:  messaging.Discard[LinkDeletedEvent](),
	}
}
