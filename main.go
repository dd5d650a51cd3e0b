package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasogane/guildhall/actions"
	apirest "github.com/kasogane/guildhall/api/rest"
	"github.com/kasogane/guildhall/api/sse"
	"github.com/kasogane/guildhall/audit"
	"github.com/kasogane/guildhall/cache"
	"github.com/kasogane/guildhall/claim"
	"github.com/kasogane/guildhall/config"
	"github.com/kasogane/guildhall/cooldowns"
	dbadapter "github.com/kasogane/guildhall/db"
	"github.com/kasogane/guildhall/events"
	"github.com/kasogane/guildhall/guild"
	mw "github.com/kasogane/guildhall/middleware"
	"github.com/kasogane/guildhall/model"
	"github.com/kasogane/guildhall/perms"
	"github.com/kasogane/guildhall/scheduler"
	"github.com/kasogane/guildhall/store"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cfg.Cache)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Core handlers ----
	guildStore := store.NewGuildStore(db, logger)
	cooldownStore := store.NewCooldownStore(db)

	roles := guild.DefaultRoles()
	guildH := guild.NewHandler(cfg.Guild, roles, guildStore, logger)
	actionH := actions.NewHandler()
	cooldownH := cooldowns.NewHandler(cooldownStore, logger)
	center := events.NewCenter()

	if cfg.Hooks.PermsEnabled {
		perms.RegisterListeners(center, perms.NewLogSyncer(logger), logger)
	}
	if cfg.Hooks.ClaimsEnabled {
		claim.RegisterListeners(center, claim.NewLogProvider(logger), logger)
	}

	// A load failure is fatal: the registry must never come up half
	// populated and then overwrite good data on the next save.
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := guildH.LoadData(startCtx); err != nil {
		log.Fatalf("guild load: %v", err)
	}
	if err := cooldownH.Load(startCtx); err != nil {
		log.Fatalf("cooldown load: %v", err)
	}
	startCancel()

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	saveInterval := time.Duration(cfg.Guild.SaveIntervalS) * time.Second
	sched.AddTicker("guild_save", saveInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := guildH.SaveData(ctx); err != nil {
			logger.Error("scheduled guild save failed", zap.Error(err))
		}
		if err := cooldownH.Save(ctx); err != nil {
			logger.Error("scheduled cooldown save failed", zap.Error(err))
		}
	})
	sched.AddTicker("cooldown_sweep", time.Minute, func() {
		if n := cooldownH.Sweep(); n > 0 {
			logger.Debug("cooldowns swept", zap.Int("evicted", n))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	restH := apirest.NewGuildHandler(guildH, actionH, cooldownH, center, pubsub, auditSvc, cfg.Guild, logger)
	adminH := apirest.NewAdminHandler(guildH, cooldownH, auditSvc, logger)
	sseH := sse.NewHandler(guildH, pubsub, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		guildsG := api.Group("/guilds")
		guildsG.Use(mw.Auth(cfg.Security, c))
		guildsG.GET("", restH.List)
		guildsG.POST("", restH.Create)
		guildsG.POST("/confirm", restH.Confirm)
		guildsG.POST("/cancel", restH.Cancel)
		guildsG.GET("/me", restH.Mine)
		guildsG.POST("/delete", restH.Delete)
		guildsG.POST("/leave", restH.Leave)
		guildsG.PUT("/name", restH.Rename)
		guildsG.PUT("/status", restH.UpdateStatus)
		guildsG.PUT("/prefix", restH.UpdatePrefix)
		guildsG.GET("/motd", restH.MOTD)
		guildsG.PUT("/motd", restH.UpdateMOTD)
		guildsG.PUT("/home", restH.SetHome)
		guildsG.POST("/home/visit", restH.VisitHome)
		guildsG.POST("/upgrade", restH.Upgrade)
		guildsG.POST("/transfer", restH.Transfer)

		guildsG.GET("/invites", restH.Invites)
		guildsG.POST("/invites", restH.Invite)
		guildsG.POST("/invites/accept", restH.AcceptInvite)
		guildsG.POST("/invites/decline", restH.DeclineInvite)
		guildsG.DELETE("/members/:pid", restH.Kick)
		guildsG.POST("/members/:pid/promote", restH.Promote)
		guildsG.POST("/members/:pid/demote", restH.Demote)

		guildsG.GET("/bank", restH.Bank)
		guildsG.POST("/bank/deposit", restH.Deposit)
		guildsG.POST("/bank/withdraw", restH.Withdraw)
		guildsG.GET("/vaults/:idx", restH.Vault)
		guildsG.PUT("/vaults/:idx", restH.PutVault)

		guildsG.GET("/codes", restH.Codes)
		guildsG.POST("/codes", restH.CreateCode)
		guildsG.POST("/codes/redeem", restH.Redeem)

		guildsG.GET("/allies", restH.Allies)
		guildsG.POST("/allies/request", restH.RequestAlly)
		guildsG.POST("/allies/accept", restH.AcceptAlly)
		guildsG.POST("/allies/decline", restH.DeclineAlly)
		guildsG.DELETE("/allies/:id", restH.RemoveAlly)

		guildsG.POST("/chat", restH.Chat)
		guildsG.GET("/events", sseH.Stream)

		// Detail last so static segments above are not shadowed.
		guildsG.GET("/:id", restH.Detail)

		adminG := api.Group("/admin")
		adminG.Use(mw.AdminAuth(cfg.Server))
		adminG.GET("/guilds", adminH.ListGuilds)
		adminG.PUT("/guilds/:id/motd", adminH.UpdateMOTD)
		adminG.DELETE("/guilds/:id", adminH.RemoveGuild)
		adminG.POST("/save", adminH.Save)
		adminG.DELETE("/cooldowns/:kind/:pid", adminH.ClearCooldown)
		adminG.GET("/status", adminH.Status)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// ---- Graceful shutdown with final flush ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := guildH.SaveData(shutdownCtx); err != nil {
		logger.Error("final guild save failed", zap.Error(err))
	}
	if err := cooldownH.Save(shutdownCtx); err != nil {
		logger.Error("final cooldown save failed", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
