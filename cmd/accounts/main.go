// Command accounts provides operator utilities for user sessions.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"vidhub/internal/auth"
	"vidhub/internal/cache"
	"vidhub/internal/config"
	"vidhub/internal/database"
	"vidhub/internal/models"
	"vidhub/internal/repository"
	"vidhub/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  accounts show <username|email>    - Show a user and whether a session is active")
	fmt.Println("  accounts revoke <username|email>  - Clear the stored refresh token, ending the session")
}

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		AccessTTL:     cfg.AccessTTL(),
		RefreshSecret: cfg.RefreshTokenSecret,
		RefreshTTL:    cfg.RefreshTTL(),
	})
	if err != nil {
		log.Fatalf("Failed to configure tokens: %v", err)
	}

	hasher := auth.NewBcryptHasher(0)
	users := repository.NewUserRepository(db, rdb, hasher)
	svc := service.NewAuthService(users, tokens, hasher, nil, cache.NewDenylist(rdb))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	login := os.Args[2]
	switch os.Args[1] {
	case "show":
		user, err := svc.LookupUser(ctx, login)
		if err != nil {
			fail(err)
		}
		printUser(user)
	case "revoke":
		user, err := svc.RevokeSessions(ctx, login)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Revoked sessions for %s (ID: %d)\n", user.Username, user.ID)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func printUser(u *models.User) {
	fmt.Printf("ID:         %d\n", u.ID)
	fmt.Printf("Username:   %s\n", u.Username)
	fmt.Printf("Email:      %s\n", u.Email)
	fmt.Printf("Full name:  %s\n", u.FullName)
	fmt.Printf("Created:    %s\n", u.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Session:    %t\n", u.RefreshToken != nil)
}

func fail(err error) {
	if models.IsCode(err, models.CodeNotFound) {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	log.Fatalf("Account operation failed: %v", err)
}
