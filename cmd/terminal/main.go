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

	"github.com/ilaydakx/pos-system/internal/config"
	"github.com/ilaydakx/pos-system/internal/gateway"
	"github.com/ilaydakx/pos-system/internal/httpapi"
	"github.com/ilaydakx/pos-system/internal/session"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 1)

	var invoker gateway.Invoker
	if cfg.BackendURL != "" {
		invoker = gateway.NewHTTPInvoker(cfg.BackendURL, time.Duration(cfg.BackendTimeoutSeconds)*time.Second)
		log.Printf("gateway: %s", cfg.BackendURL)
	} else {
		invoker = gateway.NewMemorySeeded()
		log.Println("gateway: in-memory")
	}
	client := gateway.NewClient(invoker)

	var sessionStore session.Store = session.NewMemoryStore()
	if cfg.RedisAddr != "" {
		redisStore := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TerminalID)
		if err := redisStore.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), session state kept in memory", err)
		} else {
			sessionStore = redisStore
			closers = append(closers, redisStore.Close)
			log.Println("session store: redis")
		}
	} else {
		log.Println("session store: in-memory")
	}

	guard := session.NewGuard(sessionStore)
	unlock := httpapi.NewUnlockManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.UnlockPIN)
	api := httpapi.New(client, guard, unlock)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS terminal listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("terminal stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.UnlockPIN) < 4 {
		return fmt.Errorf("UNLOCK_PIN must be set and at least 4 digits")
	}
	if err := validatePINStrength(cfg.UnlockPIN); err != nil {
		return fmt.Errorf("UNLOCK_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"1234": true, "4321": true, "0000": true, "1111": true,
		"2222": true, "1212": true, "2580": true, "1004": true,
		"123456": true, "654321": true, "000000": true, "111111": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
