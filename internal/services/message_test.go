package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"couple-sync-backend/internal/models"
)

type messageEnv struct {
	couples *FakeCoupleStore
	widgets *FakeWidgetStore
	hub     *FakeHub
	relay   *FakeRelay
	service *MessageService
}

func newMessageEnv(t *testing.T, memberIDs ...string) *messageEnv {
	t.Helper()
	env := &messageEnv{
		couples: NewFakeCoupleStore(),
		widgets: NewFakeWidgetStore(),
		hub:     NewFakeHub(),
		relay:   NewFakeRelay(),
	}
	ctx := context.Background()
	if _, err := env.couples.Create(ctx, "c1", "ABC234", memberIDs[0]); err != nil {
		t.Fatalf("failed to seed couple: %v", err)
	}
	for _, id := range memberIDs[1:] {
		if _, err := env.couples.Join(ctx, "c1", id); err != nil {
			t.Fatalf("failed to seed member %s: %v", id, err)
		}
	}
	env.service = NewMessageService(env.couples, env.widgets, env.hub, env.relay)
	return env
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	env := newMessageEnv(t, "alice", "bob")

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := env.service.Send(context.Background(), "c1", "alice", "Alice", text)
		if !errors.Is(err, models.ErrEmptyMessage) {
			t.Fatalf("text %q: expected ErrEmptyMessage, got %v", text, err)
		}
	}
}

func TestSendTrimsAndCaps(t *testing.T) {
	env := newMessageEnv(t, "alice", "bob")

	long := "  " + strings.Repeat("é", maxMessageRunes+25) + "  "
	msg, err := env.service.Send(context.Background(), "c1", "alice", "Alice", long)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if got := utf8.RuneCountInString(msg.Text); got != maxMessageRunes {
		t.Fatalf("expected text capped at %d runes, got %d", maxMessageRunes, got)
	}
	if strings.HasPrefix(msg.Text, " ") || strings.HasSuffix(msg.Text, " ") {
		t.Error("expected surrounding whitespace trimmed")
	}
}

func TestSendOverwritesLastMessage(t *testing.T) {
	env := newMessageEnv(t, "alice", "bob")
	ctx := context.Background()

	if _, err := env.service.Send(ctx, "c1", "alice", "Alice", "first"); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if _, err := env.service.Send(ctx, "c1", "bob", "Bob", "second"); err != nil {
		t.Fatalf("second send failed: %v", err)
	}

	couple, err := env.couples.GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("failed to reread couple: %v", err)
	}
	if couple.LastMessage == nil {
		t.Fatal("expected a last message")
	}
	if couple.LastMessage.Text != "second" || couple.LastMessage.FromUserID != "bob" {
		t.Fatalf("expected bob's message to win, got %+v", couple.LastMessage)
	}
}

func TestSendMirrorsWidgetNoteToPartner(t *testing.T) {
	env := newMessageEnv(t, "alice", "bob")
	ctx := context.Background()
	env.hub.SetOnline("bob", true)

	if _, err := env.service.Send(ctx, "c1", "alice", "Alice", "missing you"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	note, err := env.service.WidgetNoteFor(ctx, "bob")
	if err != nil {
		t.Fatalf("widget note lookup failed: %v", err)
	}
	if note == nil || note.Text != "missing you" || note.FromName != "Alice" {
		t.Fatalf("expected alice's note mirrored for bob, got %+v", note)
	}

	sent := env.hub.Sent("bob")
	if len(sent) != 1 || sent[0].Type != "message" {
		t.Fatalf("expected one live message for bob, got %v", sent)
	}
	if len(env.hub.Sent("alice")) != 0 {
		t.Error("sender must not receive their own echo")
	}
}

func TestSendRecordsLastSentForSender(t *testing.T) {
	env := newMessageEnv(t, "alice", "bob")
	ctx := context.Background()

	if _, err := env.service.Send(ctx, "c1", "alice", "Alice", "good morning"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	lastSent, err := env.service.LastSentFor(ctx, "alice", "c1")
	if err != nil {
		t.Fatalf("last sent lookup failed: %v", err)
	}
	if lastSent == nil || lastSent.Text != "good morning" {
		t.Fatalf("expected sender's last-sent record, got %+v", lastSent)
	}

	partnerLastSent, err := env.service.LastSentFor(ctx, "bob", "c1")
	if err != nil {
		t.Fatalf("partner last sent lookup failed: %v", err)
	}
	if partnerLastSent != nil {
		t.Error("last-sent is per sender, partner must have none")
	}
}

func TestSendToleratesOfflinePartner(t *testing.T) {
	env := newMessageEnv(t, "alice", "bob")
	ctx := context.Background()

	msg, err := env.service.Send(ctx, "c1", "alice", "Alice", "hello")
	if err != nil {
		t.Fatalf("send must succeed with partner offline: %v", err)
	}
	if msg.Text != "hello" {
		t.Fatalf("unexpected message %+v", msg)
	}

	// The widget mirror still lands; only the live delivery is skipped.
	note, err := env.service.WidgetNoteFor(ctx, "bob")
	if err != nil || note == nil {
		t.Fatalf("expected widget note despite offline partner, got %v, %v", note, err)
	}

	bumps := env.relay.Bumps()
	if len(bumps) != 1 || bumps[0] != "c1:message:alice" {
		t.Fatalf("expected a message bump excluding alice, got %v", bumps)
	}
}

func TestSendBeforeMatchSkipsPartnerDelivery(t *testing.T) {
	env := newMessageEnv(t, "alice")
	ctx := context.Background()

	if _, err := env.service.Send(ctx, "c1", "alice", "Alice", "anyone there?"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	couple, err := env.couples.GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("failed to reread couple: %v", err)
	}
	if couple.LastMessage == nil || couple.LastMessage.Text != "anyone there?" {
		t.Fatal("message still persists on the couple while waiting")
	}
}
