package main

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/realtime"
	"github.com/cppla/myblog/routes"
	"github.com/cppla/myblog/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync()

	db := config.InitDatabase()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := utils.NewStorage(ctx, cfg)
	if err != nil {
		utils.Sugar.Fatalf("storage init failed: %v", err)
	}

	hub := realtime.NewHub(utils.Logger.Named("ws"), originChecker(cfg.AllowedOrigins))
	go hub.Run(ctx)

	// Reclaim uploads that never got attached to a post or comment
	ttl := time.Duration(cfg.OrphanUploadTTLMinutes) * time.Minute
	utils.NewUploadCleaner(db, st, ttl, 5*time.Minute).Start(ctx)

	r := routes.SetupRouter(db, st, hub)

	utils.Sugar.Infof("Starting server on port %s (graceful), db=%s storage=%s", cfg.AppPort, cfg.DBDriver, cfg.StorageDriver)
	if err := utils.GraceServer(":"+cfg.AppPort, r, cancel); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

// originChecker mirrors the CORS allow list for websocket upgrades.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || (len(allowed) == 1 && allowed[0] == "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimRight(a, "/"), u.Scheme+"://"+u.Host) {
				return true
			}
		}
		return false
	}
}
