package configuration

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"playchat/internal/crypto"
	"playchat/internal/db"
	"playchat/internal/hub"
	"playchat/internal/model"
	"playchat/internal/repo"
	"playchat/internal/service"
)

// Container wires the application graph: repositories over one Mongo
// database, services over the repositories, and the hub as the live channel.
type Container struct {
	Config Config
	Logger *zap.Logger
	Hub    *hub.Hub
	Tokens *service.TokenManager

	ChatService   service.ChatService
	FriendService service.FriendService
	UserService   service.UserService

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	con, err := db.OpenConnection(config.Mongo.URI, config.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := db.EnsureIndexes(context.Background(), con); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	messageKey, err := base64.StdEncoding.DecodeString(config.Secrets.MessageKey)
	if err != nil {
		return nil, fmt.Errorf("invalid message key: %w", err)
	}
	codec, err := crypto.NewAESCodec(messageKey)
	if err != nil {
		return nil, err
	}

	userRepo := repo.NewUserRepository(con, db.NewRepository[model.User](con, "users"), logger)
	conversationRepo := repo.NewConversationRepository(db.NewRepository[model.Conversation](con, "conversations"), logger)
	messageRepo := repo.NewMessageRepository(db.NewRepository[model.Message](con, "messages"), logger)
	friendRequestRepo := repo.NewFriendRequestRepository(db.NewRepository[model.FriendRequest](con, "friend_requests"), logger)

	blobs, err := db.NewGridFSBlobStore(con, logger)
	if err != nil {
		return nil, err
	}

	notifier := service.NewSMTPNotifier(config.SMTP, logger)
	tokens := service.NewTokenManager(config.Secrets.TokenSecret, time.Duration(config.Auth.TokenTTLMinutes)*time.Minute)

	h := hub.NewHub(logger)

	chatService := service.NewChatService(userRepo, conversationRepo, messageRepo, codec, h, logger, 0, 0)
	h.SetDispatcher(chatService)

	friendService := service.NewFriendService(friendRequestRepo, userRepo, notifier, logger)
	userService := service.NewUserService(userRepo, blobs, notifier, tokens, logger)

	return &Container{
		Config:        *config,
		Logger:        logger,
		Hub:           h,
		Tokens:        tokens,
		ChatService:   chatService,
		FriendService: friendService,
		UserService:   userService,
		mongoClient:   con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the pipeline first so in-flight durable tasks drain
	if c.ChatService != nil {
		c.ChatService.Close()
	}

	// Stop the hub (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
