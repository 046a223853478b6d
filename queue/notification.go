package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/deentrack/deentrack/server/notifications/email"
	storage "github.com/deentrack/deentrack/storage/cache"
	"github.com/streadway/amqp"
)

// globalCount drives the round-robin assignment of producers to messages.
var globalCount int

// NotificationProducerFactory creates new NotificationProducer instances.
type NotificationProducerFactory struct{}

// NotificationConsumerFactory creates new NotificationConsumer instances.
// Its Cache is used to deduplicate redelivered messages.
type NotificationConsumerFactory struct {
	Cache storage.CacheInterface
}

// NotificationProducer publishes badge congratulation messages.
type NotificationProducer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

// NotificationConsumer drains badge congratulation messages, skipping any
// it has already processed according to the cache.
type NotificationConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
	cache   storage.CacheInterface
}

// Message is the payload of one badge congratulation email. Id must be
// unique per (user, badge, day) so redeliveries can be deduplicated.
type Message struct {
	Id    string `json:"id"`
	To    string `json:"to"`
	Badge string `json:"badge"`
}

// CreateProducer builds a NotificationProducer over the given connection,
// channel and queue.
func (f *NotificationProducerFactory) CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error) {
	return &NotificationProducer{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

// CreateConsumer builds a NotificationConsumer over the given connection,
// channel and queue, with the factory's cache attached.
func (f *NotificationConsumerFactory) CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error) {
	return &NotificationConsumer{
		conn:    conn,
		channel: ch,
		queue:   queue,
		cache:   f.Cache,
	}, nil
}

// Publish sends the message body to the queue.
func (np *NotificationProducer) Publish(body []byte) error {
	err := np.channel.Publish(
		"",            // exchange
		np.queue.Name, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// Consume sets up a consumer on the queue and launches a goroutine that
// reads messages until the context is cancelled. Each message is
// unmarshalled, checked against the cache, and either mailed out or
// discarded as already processed.
func (nc *NotificationConsumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	msgs, err := nc.channel.Consume(
		nc.queue.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case d, ok := <-msgs:

				if !ok {
					return
				}

				message := &Message{}
				if err := json.Unmarshal(d.Body, message); err != nil {
					log.Printf("failed to unmarshal notification message: %v", err)
					d.Nack(false, true) // requeue the message in case of transient error.
					continue
				}

				processed, err := nc.cache.Get(ctx, "notify_"+message.Id)
				if err != nil {
					// Ignore cache misses, handle other errors
					if err.Error() != "key does not exist" {
						log.Printf("error checking cache: %v", err)
						d.Nack(false, true)
						continue
					}
				}

				if processed != nil {
					d.Ack(false)
					continue
				}

				if err := email.SendBadgeEmail(message.To, message.Badge); err != nil {
					log.Printf("failed to send notification email: %v", err)
					d.Nack(false, true)
				} else {
					d.Ack(false)
					if err := nc.cache.Set(ctx, "notify_"+message.Id, true); err != nil {
						log.Printf("failed to set key in cache: %v", err)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return msgs, nil
}

// BuildNotificationQueue initializes the badge notification queue with the
// requested number of producers and consumers, all consumers sharing the
// given dedupe cache.
func BuildNotificationQueue(rabbitMQURL string, numProducers int, numConsumers int, cache storage.CacheInterface) *Queue {

	prodFactories := make([]ProducerFactory, numProducers)
	for i := 0; i < numProducers; i++ {
		prodFactories[i] = &NotificationProducerFactory{}
	}

	consFactories := make([]ConsumerFactory, numConsumers)
	for i := 0; i < numConsumers; i++ {
		consFactories[i] = &NotificationConsumerFactory{Cache: cache}
	}

	return InitQueue(rabbitMQURL, "notificationQueue", prodFactories, consFactories)
}

// InitNotificationCache connects the dedupe cache used by the consumers.
func InitNotificationCache(url string) storage.CacheInterface {
	c, err := storage.NewCache(url)
	if err != nil {
		log.Fatalf("Error connecting to cache: %v", err)
	}
	return c
}

// ProcessNotification serializes the message and publishes it through one
// of the queue's producers in round-robin order.
func ProcessNotification(msg *Message, q *Queue) error {

	body, err := json.Marshal(msg)
	if err != nil {
		return errors.New("failed to marshal notification message: " + err.Error())
	}

	producerCount := len(q.Producers)
	if producerCount == 0 {
		return errors.New("no producers available")
	}

	producer := q.Producers[globalCount%producerCount]
	globalCount++

	if err := producer.Publish(body); err != nil {
		return errors.New("failed to publish notification message: " + err.Error())
	}

	return nil
}
