package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"zapmenu/pkg/config"
	"zapmenu/pkg/menu"
	"zapmenu/pkg/store"
)

// seedCmd loads menu definitions from a JSON file into the store, replacing
// menus with the same id. The file is an array of menus:
//
//	[
//	  {
//	    "id": "menu-main",
//	    "prompt": "<strong>Como posso ajudar?</strong>",
//	    "options": [
//	      {"kind": "message", "text": "Atendemos de segunda a sexta."},
//	      {"kind": "button", "text": "Suporte", "target": "menu-suporte"},
//	      {"kind": "button", "text": "Falar com atendente"}
//	    ]
//	  }
//	]
func seedCmd() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: zapmenu seed <menus.json>")
		os.Exit(1)
	}
	path := os.Args[2]

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}

	var menus []menu.Menu
	if err := json.Unmarshal(data, &menus); err != nil {
		fmt.Printf("Invalid menu file: %v\n", err)
		os.Exit(1)
	}

	if err := validateMenus(menus, cfg.Bot.RootMenuID); err != nil {
		fmt.Printf("Invalid menu file: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(config.DataDir(), 0755); err != nil {
		fmt.Printf("Failed to create data dir: %v\n", err)
		os.Exit(1)
	}

	repo, err := store.NewSQLite(cfg.Store.DBPath)
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx := context.Background()
	for i := range menus {
		if err := repo.UpsertMenu(ctx, &menus[i]); err != nil {
			fmt.Printf("Failed to store menu %s: %v\n", menus[i].ID, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Seeded %d menu(s) into %s\n", len(menus), cfg.Store.DBPath)
}

func validateMenus(menus []menu.Menu, rootMenuID string) error {
	if len(menus) == 0 {
		return fmt.Errorf("no menus defined")
	}

	ids := make(map[string]bool, len(menus))
	hasRoot := false
	for _, m := range menus {
		if m.ID == "" {
			return fmt.Errorf("menu with empty id")
		}
		if ids[m.ID] {
			return fmt.Errorf("duplicate menu id %q", m.ID)
		}
		ids[m.ID] = true
		if m.ID == rootMenuID {
			hasRoot = true
		}
		for _, opt := range m.Options {
			if opt.Kind != menu.KindMessage && opt.Kind != menu.KindButton {
				return fmt.Errorf("menu %q: unknown option kind %q", m.ID, opt.Kind)
			}
			if opt.Text == "" {
				return fmt.Errorf("menu %q: option with empty text", m.ID)
			}
		}
	}

	// Dangling button targets are allowed (the engine answers with the
	// invalid-option reply), but seeding is the right time to hear about
	// them.
	for _, m := range menus {
		for _, opt := range m.Buttons() {
			if opt.Target != "" && !ids[opt.Target] {
				fmt.Printf("Warning: menu %q button %q points at unknown menu %q\n", m.ID, opt.Text, opt.Target)
			}
		}
	}

	if !hasRoot {
		fmt.Printf("Warning: no menu with the root id %q; new users will get no menu\n", rootMenuID)
	}
	return nil
}
