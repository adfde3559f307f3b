package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	approuters "playchat/internal/app_routers"
	"playchat/internal/configuration"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", defaultConfigPath(), "path to the JSON config file")
	flag.Parse()

	container, err := configuration.BuildContainer(*configPath)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	// Setup routers
	approuters.StartServer(container)
}

func defaultConfigPath() string {
	if path := os.Getenv("PLAYCHAT_CONFIG"); path != "" {
		return path
	}
	return "config.json"
}
