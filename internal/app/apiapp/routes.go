package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/knowmetools/km-api-sub001/internal/config"
	appstoresvc "github.com/knowmetools/km-api-sub001/internal/services/appstore"
	authsvc "github.com/knowmetools/km-api-sub001/internal/services/auth"
	journalsvc "github.com/knowmetools/km-api-sub001/internal/services/journal"
	mediasvc "github.com/knowmetools/km-api-sub001/internal/services/media"
	profilesvc "github.com/knowmetools/km-api-sub001/internal/services/profiles"
	"github.com/knowmetools/km-api-sub001/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService    *authsvc.Service
	ReceiptService *appstoresvc.Service
	ProfileService *profilesvc.Service
	JournalService *journalsvc.Service
	MediaService   *mediasvc.Service
	Logger         *zap.Logger
	Config         config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	healthHandler := handlers.NewHealthHandler()
	receiptHandler := handlers.NewReceiptHandler(deps.ReceiptService, deps.Logger)
	profileHandler := handlers.NewProfileHandler(deps.ProfileService)
	journalHandler := handlers.NewJournalHandler(deps.JournalService)
	mediaHandler := handlers.NewMediaHandler(deps.MediaService)
	authMW := AuthMiddleware(deps.AuthService, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout_all", authHandler.LogoutAll)
	})

	r.Post("/apple/receipt-type-query/", receiptHandler.ClassifyType)

	r.Route("/know-me", func(r chi.Router) {
		r.With(authMW).Post("/subscriptions/transfer/", receiptHandler.Transfer)
		r.With(authMW).Get("/apple-receipts/{receiptHash}/", receiptHandler.LookupByHash)

		r.With(authMW).Post("/profiles", profileHandler.Create)
		r.With(authMW).Get("/profiles/me", profileHandler.Me)
		r.With(authMW).Get("/profiles/{profileID}", profileHandler.Get)
		r.With(authMW).Post("/profiles/{profileID}/topics", profileHandler.CreateTopic)
		r.With(authMW).Get("/profiles/{profileID}/topics", profileHandler.ListTopics)
		r.With(authMW).Post("/topics/{topicID}/items", profileHandler.CreateItem)
		r.With(authMW).Get("/topics/{topicID}/items", profileHandler.ListItems)

		r.With(authMW).Post("/profiles/{profileID}/accessors", profileHandler.GrantAccessor)
		r.With(authMW).Get("/profiles/{profileID}/accessors", profileHandler.ListAccessors)
		r.With(authMW).Post("/accessors/{accessorID}/accept", profileHandler.AcceptAccessor)

		r.With(authMW).Post("/profiles/{profileID}/journal", journalHandler.CreateEntry)
		r.With(authMW).Get("/profiles/{profileID}/journal", journalHandler.ListEntries)
		r.With(authMW).Get("/journal/{entryID}", journalHandler.GetEntry)

		r.With(authMW).Post("/profiles/{profileID}/media", mediaHandler.Upload)
		r.With(authMW).Get("/profiles/{profileID}/media", mediaHandler.List)
	})
}
