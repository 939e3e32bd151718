package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"clinicsync/api"
	"clinicsync/chat"
	"clinicsync/config"
	"clinicsync/models"
	"clinicsync/notify"
	"clinicsync/poll"
	"clinicsync/storage"
)

func main() {
	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		log.Fatalf("startup failed while loading config: %v", err)
	}
	if cfg.EmployeeID <= 0 {
		log.Fatalf("no employee identity configured: set employee_id in %s or CLINIC_SYNC_EMPLOYEE_ID", cfgPath)
	}

	fmt.Printf("Client ID:       %s\n", cfg.ClientID)
	fmt.Printf("Employee ID:     %d\n", cfg.EmployeeID)
	fmt.Printf("Branch ID:       %d\n", cfg.BranchID)
	fmt.Printf("API Base URL:    %s\n", cfg.APIBaseURL)
	fmt.Printf("Config File:     %s\n", cfgPath)
	dataDir := filepath.Dir(cfgPath)

	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		log.Fatalf("startup failed while opening database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("database close error: %v", err)
		}
	}()
	fmt.Printf("Database File:   %s\n", dbPath)

	gateway, err := api.NewClient(cfg.APIBaseURL, api.Identity{
		EmployeeID: cfg.EmployeeID,
		BranchID:   cfg.BranchID,
	})
	if err != nil {
		log.Fatalf("startup failed while building API client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller := poll.NewPoller()
	defer poller.StopAll()

	center, err := notify.NewCenter(gateway, poller, store, notify.Options{
		PollInterval: cfg.BackgroundPollInterval(),
		OnAlert: func(n models.Notification) {
			target, ok := notify.ResolveLink(n.LinkURL, cfg.AdminMode)
			if ok {
				log.Printf("notification from %s: %s (opens %s)", n.ActorName(), n.Message, target.Path)
				return
			}
			log.Printf("notification from %s: %s", n.ActorName(), n.Message)
		},
	})
	if err != nil {
		log.Fatalf("startup failed while building notification center: %v", err)
	}
	if err := center.StartPolling(ctx); err != nil {
		log.Fatalf("startup failed while starting notification polling: %v", err)
	}

	session, err := chat.NewSession(gateway, poller, chat.Options{
		ForegroundInterval: cfg.ForegroundPollInterval(),
		BackgroundInterval: cfg.BackgroundPollInterval(),
		KeyLog:             store,
	})
	if err != nil {
		log.Fatalf("startup failed while building chat session: %v", err)
	}
	if err := session.StartPartnerPolling(ctx); err != nil {
		log.Fatalf("startup failed while starting partner polling: %v", err)
	}

	if _, err := store.PruneSendKeys(time.Now().Add(-storage.DefaultSendKeyRetention).UnixMilli()); err != nil {
		log.Printf("send key prune: %v", err)
	}

	fmt.Println("Status:          running (press Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Println("Status:          shutting down")
}
