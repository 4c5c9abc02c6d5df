package menu

import "testing"

func sampleMenu() *Menu {
	return &Menu{
		ID:     "menu-main",
		Prompt: "<strong>Como posso ajudar?</strong>",
		Options: []Option{
			{Kind: KindMessage, Text: "Atendemos de segunda a sexta."},
			{Kind: KindButton, Text: "Suporte", Target: "menu-suporte"},
			{Kind: KindMessage, Text: "Horário: 9h às 18h."},
			{Kind: KindButton, Text: "Financeiro", Target: "menu-financeiro"},
			{Kind: KindButton, Text: "Falar com atendente"},
		},
	}
}

func TestMessagesAndButtonsSplit(t *testing.T) {
	m := sampleMenu()

	if got := len(m.Messages()); got != 2 {
		t.Fatalf("expected 2 message options, got %d", got)
	}
	if got := len(m.Buttons()); got != 3 {
		t.Fatalf("expected 3 button options, got %d", got)
	}
}

func TestButtonByOrdinalSkipsMessages(t *testing.T) {
	m := sampleMenu()

	first := m.ButtonByOrdinal(1)
	if first == nil || first.Text != "Suporte" {
		t.Fatalf("ordinal 1 should be Suporte, got %+v", first)
	}

	second := m.ButtonByOrdinal(2)
	if second == nil || second.Text != "Financeiro" {
		t.Fatalf("ordinal 2 should be Financeiro, got %+v", second)
	}

	third := m.ButtonByOrdinal(3)
	if third == nil || third.Target != "" {
		t.Fatalf("ordinal 3 should be the targetless button, got %+v", third)
	}
}

func TestButtonByOrdinalOutOfRange(t *testing.T) {
	m := sampleMenu()

	if m.ButtonByOrdinal(0) != nil {
		t.Fatalf("ordinal 0 should not resolve")
	}
	if m.ButtonByOrdinal(4) != nil {
		t.Fatalf("ordinal 4 should not resolve")
	}
	if m.ButtonByOrdinal(-1) != nil {
		t.Fatalf("negative ordinal should not resolve")
	}
}

func TestRenderPromptNumbersOnlyButtons(t *testing.T) {
	m := sampleMenu()

	want := "*Como posso ajudar?*\n1. Suporte\n2. Financeiro\n3. Falar com atendente"
	if got := m.RenderPrompt(); got != want {
		t.Fatalf("unexpected prompt:\n%q\nwant:\n%q", got, want)
	}
}

func TestRenderPromptNoButtons(t *testing.T) {
	m := &Menu{
		ID:     "menu-info",
		Prompt: "Informações",
		Options: []Option{
			{Kind: KindMessage, Text: "Só um aviso."},
		},
	}

	if got := m.RenderPrompt(); got != "Informações" {
		t.Fatalf("unexpected prompt: %q", got)
	}
}
