package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anonbot/internal/config"
	"anonbot/internal/dialogue"
	"anonbot/internal/infrastructure"
	"anonbot/internal/interfaces/bot"
	apihttp "anonbot/internal/interfaces/http"
	"anonbot/internal/logging"
	"anonbot/internal/repository"
	"anonbot/internal/usecases"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := infrastructure.NewPostgresClient(cfg.DatabaseURL)
	if err != nil {
		logging.Log.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	users := repository.NewUserRepository(pg.Pool)
	messages := repository.NewMessageRepository(pg.Pool)
	allowList := repository.NewAllowListRepository(pg.Pool)
	if err := allowList.SyncFromJSON(ctx, cfg.AllowListPath); err != nil {
		logging.Log.Error("import allow list", "path", cfg.AllowListPath, "error", err)
		os.Exit(1)
	}

	dialogueStore, err := repository.NewDialogueStateRepository(cfg.DialogueDB)
	if err != nil {
		logging.Log.Error("open dialogue store", "path", cfg.DialogueDB, "error", err)
		os.Exit(1)
	}
	defer dialogueStore.Close()

	tg, err := infrastructure.NewTelegramClient(cfg.BotToken, cfg.GroupChatID)
	if err != nil {
		logging.Log.Error("connect to telegram", "error", err)
		os.Exit(1)
	}
	logging.Log.Info("bot authorized", "username", tg.Username())

	quota := usecases.Quota{PerDay: cfg.MaxPerDay}
	auth := usecases.NewAuthService(users, allowList, tg, cfg.AdminUsername, cfg.LoginPrefix)
	content := usecases.NewContentService(tg, users, cfg.AdminUsername, tg.Username())
	moderation := usecases.NewModerationService(messages, users, tg, content)
	menu := bot.NewMenuService(tg, users, quota)

	engine := dialogue.NewEngine(dialogueStore, tg)
	scripts := usecases.NewScripts(users, messages, allowList, tg, content, auth, menu,
		quota, cfg.Moderation, tg.Username())
	scripts.Register(engine)

	dispatcher := bot.NewDispatcher(tg, engine, auth, moderation, menu, users, messages,
		cfg.GroupChatID, cfg.GroupChatLink)

	// Admin API is optional: it only starts with full credentials.
	var httpServer *http.Server
	if cfg.JWTSecret != "" && cfg.AdminAPIPassword != "" {
		operatorAuth, err := usecases.NewOperatorAuth(cfg.AdminUsername, cfg.AdminAPIPassword, cfg.JWTSecret)
		if err != nil {
			logging.Log.Error("configure operator auth", "error", err)
			os.Exit(1)
		}
		threads := usecases.NewThreadResolver(messages)
		server := apihttp.NewServer(moderation, threads, operatorAuth)
		httpServer = &http.Server{Addr: cfg.HTTPAddr, Handler: server.Router()}
		go func() {
			logging.Log.Info("admin api listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Log.Error("admin api failed", "error", err)
			}
		}()
	} else {
		logging.Log.Info("admin api disabled, JWT_SECRET or ADMIN_API_PASSWORD not set")
	}

	logging.Log.Info("listening for updates")
	dispatcher.Run(ctx)

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Log.Error("shut down admin api", "error", err)
		}
	}
	logging.Log.Info("stopped")
}
