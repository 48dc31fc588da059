package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"civictrack-be/config"
	"civictrack-be/repository"
	"civictrack-be/services"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	name := flag.String("name", "Administrator", "display name for a new account")
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "account email")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "password for a new account")
	flag.Parse()

	if *email == "" {
		log.Fatal("an email is required (-email or ADMIN_EMAIL)")
	}

	settings, err := config.LoadSettings(os.Getenv("SETTINGS_FILE"))
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if settings.MongoURI == "" {
		log.Fatal("MONGODB_URI environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, db, err := config.ConnectDB(ctx, settings.MongoURI, settings.MongoDatabase)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	if err := config.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	store := repository.NewMongoStore(client, db)
	admin, err := services.NewUserService(store.Users).EnsureAdmin(ctx, *name, *email, *password)
	if err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Println("Administrator ready")
	fmt.Printf("ID:    %s\n", admin.ID.Hex())
	fmt.Printf("Name:  %s\n", admin.Name)
	fmt.Printf("Email: %s\n", admin.Email)
	fmt.Printf("Role:  %s\n", admin.Role)
}
