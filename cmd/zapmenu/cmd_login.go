package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zapmenu/pkg/bus"
	"zapmenu/pkg/config"
	"zapmenu/pkg/transport"
)

// loginCmd pairs the bot with a phone and exits. The session lands in the
// same database "run" uses, so the next start connects without a QR code.
func loginCmd() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(config.DataDir(), 0755); err != nil {
		fmt.Printf("Failed to create data dir: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wa, err := transport.NewWhatsApp(ctx, cfg.WhatsApp, bus.NewMessageBus())
	if err != nil {
		fmt.Printf("Failed to init transport: %v\n", err)
		os.Exit(1)
	}
	defer wa.Disconnect()

	if err := wa.Connect(ctx); err != nil {
		fmt.Printf("Pairing failed: %v\n", err)
		os.Exit(1)
	}

	// Give the client a moment to finish the post-pair handshake before
	// tearing the connection down.
	deadline := time.Now().Add(15 * time.Second)
	for !wa.IsLoggedIn() && time.Now().Before(deadline) && ctx.Err() == nil {
		time.Sleep(200 * time.Millisecond)
	}

	if wa.IsLoggedIn() {
		fmt.Println("Paired. Start the bot with: zapmenu run")
		return
	}
	fmt.Println("Pairing did not complete; run the command again.")
	os.Exit(1)
}
