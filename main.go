package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/deentrack/deentrack/challenge"
	"github.com/deentrack/deentrack/group"
	"github.com/deentrack/deentrack/habit"
	"github.com/deentrack/deentrack/prayer"
	"github.com/deentrack/deentrack/queue"
	"github.com/deentrack/deentrack/server"
	"github.com/deentrack/deentrack/server/auth"
	"github.com/deentrack/deentrack/server/notifications/email"
	storage "github.com/deentrack/deentrack/storage/persistent"
	"github.com/joho/godotenv"
)

func main() {
	// Load the .env file.
	if err := godotenv.Load(); err != nil {
		fmt.Println("Error loading .env file")
	}

	// Read the environment variables.
	signingKey := os.Getenv("JWT_SIGNING_KEY") // JWT signing key for token generation
	serverURL := os.Getenv("SERVER_URL")       // The URL where the server is running
	dbURI := os.Getenv("MONGODB_URI")          // MongoDB database URI
	dbName := os.Getenv("DB_NAME")             // The name of the MongoDB database
	smtpEmail := os.Getenv("GOOGLE_EMAIL")     // The email address used for sending notifications
	smtpPassword := os.Getenv("GOOGLE_PASS")   // The password for the email account
	redisURL := os.Getenv("REDIS_URL")         // The Redis URL for deduplicating notifications
	rabbitMQURL := os.Getenv("RABBITMQ_URL")   // The URL for the RabbitMQ message broker
	numProducers := 1
	numConsumers := 2
	ctx := context.Background()

	store, err := storage.NewStorage(dbName, dbURI)
	if err != nil {
		log.Fatal("error connecting to storage: ", err)
	}
	defer store.Disconnect()

	// The notification pipeline is optional: without a broker the API
	// still runs, badges are just not mailed out.
	var notificationQueue *queue.Queue
	if rabbitMQURL != "" {
		if _, err := email.InitEmailService(smtpEmail, smtpPassword); err != nil {
			log.Fatal("error initializing email service: ", err)
		}

		notificationCache := queue.InitNotificationCache(redisURL)
		notificationQueue = queue.BuildNotificationQueue(rabbitMQURL, numProducers, numConsumers, notificationCache)

		if _, err := notificationQueue.StartConsumers(ctx); err != nil {
			log.Fatal("error starting queue consumers: ", err)
		}
	}

	auth.Init(store, signingKey)
	habit.Init(store)
	prayer.Init(store, notificationQueue)
	challenge.Init(store, notificationQueue)
	group.Init(store)

	go func() {
		if err := server.Start(serverURL, signingKey); err != nil {
			log.Fatal("server error: ", err)
		}
	}()

	// Graceful shutdown on interrupt.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	fmt.Println()
	fmt.Println(sig)
}
