package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"zapmenu/pkg/menu"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFindUserUnknownReturnsNil(t *testing.T) {
	s := newTestStore(t)

	e, err := s.FindUser(context.Background(), "5511999990000")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if e != nil {
		t.Fatalf("unknown user should be nil, got %+v", e)
	}
}

func TestCreateAndFindUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	created, err := s.CreateUser(ctx, "5511999990000")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.UserID != "5511999990000" {
		t.Fatalf("unexpected user id: %q", created.UserID)
	}
	if created.FirstSeenAt.Before(before) {
		t.Fatalf("first seen in the past: %s", created.FirstSeenAt)
	}

	found, err := s.FindUser(ctx, "5511999990000")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if found == nil {
		t.Fatalf("user should exist after create")
	}
	if !found.FirstSeenAt.Equal(created.FirstSeenAt) {
		t.Fatalf("first seen mismatch: %s vs %s", found.FirstSeenAt, created.FirstSeenAt)
	}
}

func TestCreateUserKeepsOriginalFirstSeen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateUser(ctx, "u1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	// A second insert must not move the enrollment timestamp.
	if _, err := s.CreateUser(ctx, "u1"); err != nil {
		t.Fatalf("re-create user: %v", err)
	}

	found, err := s.FindUser(ctx, "u1")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if !found.FirstSeenAt.Equal(first.FirstSeenAt) {
		t.Fatalf("first seen moved: %s vs %s", found.FirstSeenAt, first.FirstSeenAt)
	}
}

func TestGetMenuUnknownReturnsNil(t *testing.T) {
	s := newTestStore(t)

	m, err := s.GetMenu(context.Background(), "menu-missing")
	if err != nil {
		t.Fatalf("get menu: %v", err)
	}
	if m != nil {
		t.Fatalf("unknown menu should be nil, got %+v", m)
	}
}

func TestUpsertAndGetMenuPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := &menu.Menu{
		ID:     "menu-main",
		Prompt: "<strong>Escolha</strong>",
		Options: []menu.Option{
			{Kind: menu.KindMessage, Text: "Aviso inicial"},
			{Kind: menu.KindButton, Text: "Suporte", Target: "menu-suporte"},
			{Kind: menu.KindButton, Text: "Falar com atendente"},
		},
	}
	if err := s.UpsertMenu(ctx, in); err != nil {
		t.Fatalf("upsert menu: %v", err)
	}

	out, err := s.GetMenu(ctx, "menu-main")
	if err != nil {
		t.Fatalf("get menu: %v", err)
	}
	if out == nil {
		t.Fatalf("menu should exist")
	}
	if out.Prompt != in.Prompt {
		t.Fatalf("prompt mismatch: %q", out.Prompt)
	}
	if len(out.Options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(out.Options))
	}
	for i := range in.Options {
		if out.Options[i] != in.Options[i] {
			t.Fatalf("option %d mismatch: %+v vs %+v", i, out.Options[i], in.Options[i])
		}
	}
}

func TestUpsertMenuReplacesOptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertMenu(ctx, &menu.Menu{
		ID:     "menu-main",
		Prompt: "v1",
		Options: []menu.Option{
			{Kind: menu.KindButton, Text: "Velho"},
		},
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	if err := s.UpsertMenu(ctx, &menu.Menu{
		ID:     "menu-main",
		Prompt: "v2",
		Options: []menu.Option{
			{Kind: menu.KindButton, Text: "Novo", Target: "menu-novo"},
		},
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	out, err := s.GetMenu(ctx, "menu-main")
	if err != nil {
		t.Fatalf("get menu: %v", err)
	}
	if out.Prompt != "v2" {
		t.Fatalf("prompt not replaced: %q", out.Prompt)
	}
	if len(out.Options) != 1 || out.Options[0].Text != "Novo" {
		t.Fatalf("options not replaced: %+v", out.Options)
	}
}
