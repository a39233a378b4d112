package pkg

import (
	"context"
	"log"
	"os"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"ShopNotifier/internal/config"
	"ShopNotifier/internal/deadletter"
	"ShopNotifier/internal/dispatcher"
	"ShopNotifier/internal/notification"
	"ShopNotifier/internal/processor"
	"ShopNotifier/pkg/middleware"
)

// NotifierModules wires the whole pipeline: configuration, Mongo, the HTTP
// clients, the event processors, the dispatcher's consumer groups, the
// reconciler, and the read-only HTTP surface.
var NotifierModules = fx.Module("notifier",
	fx.Provide(NewEchoServer),
	fx.Provide(config.NewMongoDBConfig),
	fx.Provide(config.NewMongoDBClient),
	fx.Provide(config.NewKafkaConfig),
	fx.Provide(config.NewEmailConfig),
	fx.Provide(config.NewEmailService),
	fx.Provide(config.NewUsersConfig),
	fx.Provide(config.NewUsersClient),
	fx.Provide(notification.NewNotificationRepository),
	fx.Provide(deadletter.NewRecorder),
	fx.Provide(NewProductEventProcessor),
	fx.Provide(NewOrderUpdateEventProcessor),
	fx.Provide(NewUserUpdateEventProcessor),
	fx.Provide(NewRecommendationEventProcessor),
	fx.Provide(dispatcher.NewRoutingTable),
	fx.Provide(NewNotificationProcessorService),
	fx.Provide(NewReconciler),
	fx.Provide(notification.NewNotificationHandler),
	fx.Invoke(EnsureIndexes),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(StartDispatcher),
	fx.Invoke(StartReconciler),
)

// Constructors below adapt concrete dependencies onto the interfaces the
// processors accept.

func NewProductEventProcessor(repo *notification.NotificationRepository, email *config.EmailService, users *config.UsersClient, dlq *deadletter.Recorder) *processor.ProductEventProcessor {
	return processor.NewProductEventProcessor(repo, email, users, dlq)
}

func NewOrderUpdateEventProcessor(repo *notification.NotificationRepository, dlq *deadletter.Recorder) *processor.OrderUpdateEventProcessor {
	return processor.NewOrderUpdateEventProcessor(repo, dlq)
}

func NewUserUpdateEventProcessor(repo *notification.NotificationRepository, dlq *deadletter.Recorder) *processor.UserUpdateEventProcessor {
	return processor.NewUserUpdateEventProcessor(repo, dlq)
}

func NewRecommendationEventProcessor(repo *notification.NotificationRepository, email *config.EmailService, users *config.UsersClient, dlq *deadletter.Recorder) *processor.RecommendationEventProcessor {
	return processor.NewRecommendationEventProcessor(repo, email, users, dlq)
}

func NewNotificationProcessorService(kafka *config.KafkaConfig, routes dispatcher.RoutingTable, dlq *deadletter.Recorder) (*dispatcher.NotificationProcessorService, error) {
	return dispatcher.NewNotificationProcessorService(kafka, routes, dlq)
}

func NewReconciler(repo *notification.NotificationRepository, recProc *processor.RecommendationEventProcessor) *notification.Reconciler {
	return notification.NewReconciler(repo, recProc)
}

func NewEchoServer(lc fx.Lifecycle) *echo.Echo {
	e := echo.New()
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("Server running on http://localhost:" + port)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := e.Start(":" + port); err != nil {
					log.Println("Server stopped:", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Println("shutting down the server ...")
			return e.Shutdown(ctx)
		},
	})
	return e
}

func EnsureIndexes(client *config.MongoDBClient) {
	config.PendingNotificationIndex(client.GetCollection("notifications"))
}

func RegisterRoutes(e *echo.Echo, handler *notification.NotificationHandler) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	protected := e.Group("/api")
	protected.Use(middleware.JWTMiddleware)
	protected.GET("/notifications/:userId", handler.ListNotifications)
	protected.PUT("/notifications/:id/read", handler.MarkRead)
	protected.GET("/dead-letters", handler.ListDeadLetters)
}

// StartDispatcher ties the consumer groups to the application lifecycle:
// consume loops start with the app and drain before disconnect on shutdown.
func StartDispatcher(lc fx.Lifecycle, svc *dispatcher.NotificationProcessorService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			svc.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return svc.Shutdown(ctx)
		},
	})
}

func StartReconciler(lc fx.Lifecycle, r *notification.Reconciler) {
	r.StartScheduler(lc)
}
