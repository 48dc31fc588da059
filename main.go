package main

import (
	"context"
	"log"
	"os"
	"time"

	"civictrack-be/config"
	"civictrack-be/middlewares"
	"civictrack-be/repository"
	"civictrack-be/routes"
	"civictrack-be/services"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	settingsFile := os.Getenv("SETTINGS_FILE")
	if settingsFile == "" {
		settingsFile = "config.yaml"
	}
	settings, err := config.LoadSettings(settingsFile)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if settings.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var store *repository.Store
	if settings.MongoURI == "" {
		log.Println("MONGODB_URI not set, using in-memory storage")
		store = repository.NewMemoryStore().Store()
	} else {
		client, db, err := config.ConnectDB(ctx, settings.MongoURI, settings.MongoDatabase)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("MongoDB disconnect: %v", err)
			}
		}()
		if err := config.EnsureIndexes(ctx, db); err != nil {
			log.Fatalf("Failed to create indexes: %v", err)
		}
		log.Println("MongoDB connection established successfully!")
		store = repository.NewMongoStore(client, db)
	}

	var limiter middlewares.Counter
	redisClient, err := config.ConnectRedis(ctx, settings.RedisAddress, settings.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Println("Redis connection established successfully!")
		limiter = middlewares.RedisCounter{Client: redisClient}
	} else {
		log.Println("REDIS_ADDRESS not set, rate limits are per process")
		limiter = middlewares.NewLocalCounter()
	}

	limits := services.LimitsFromSettings(*settings)
	r, err := routes.SetupRouter(routes.Dependencies{
		Settings: settings,
		Users:    services.NewUserService(store.Users),
		Issues:   services.NewIssueService(store.Issues, store.Flags, limits),
		Flags:    services.NewFlagService(store.Issues, store.Flags, store.Tx, limits),
		Admin:    services.NewAdminService(store.Issues, store.Flags, limits),
		Limiter:  limiter,
	})
	if err != nil {
		log.Fatalf("Failed to set up router: %v", err)
	}

	if err := r.Run(":" + settings.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
