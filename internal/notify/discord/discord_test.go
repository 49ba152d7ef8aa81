package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zulandar/workyard/internal/notify"
)

type mockSession struct {
	errs     []error
	sent     []*discordgo.MessageSend
	channels []string
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	m.sent = append(m.sent, data)
	m.channels = append(m.channels, channelID)
	return &discordgo.Message{ID: "m1"}, nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "c"}); err == nil {
		t.Error("expected error without token")
	}
	if _, err := New(Opts{BotToken: "t"}); err == nil {
		t.Error("expected error without channel")
	}
}

func TestPublish(t *testing.T) {
	mock := &mockSession{}
	s, err := New(Opts{ChannelID: "chan-1", Session: mock})
	if err != nil {
		t.Fatal(err)
	}
	evt := notify.Event{
		Title:  "GOV-2025-004 moved to Dismissed",
		Body:   "Duplicate request",
		Color:  notify.ColorWarning,
		Fields: []notify.Field{{Name: "From", Value: "Ready for Review", Short: true}},
	}
	if err := s.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(mock.sent) != 1 || mock.channels[0] != "chan-1" {
		t.Fatalf("sent = %d to %v", len(mock.sent), mock.channels)
	}
	embed := mock.sent[0].Embeds[0]
	if embed.Title != evt.Title || embed.Description != evt.Body {
		t.Errorf("embed = %+v", embed)
	}
	if embed.Color != 0xff9800 {
		t.Errorf("Color = %x, want ff9800", embed.Color)
	}
	if len(embed.Fields) != 1 || !embed.Fields[0].Inline {
		t.Errorf("fields = %+v", embed.Fields)
	}
}

func TestPublish_RetriesOn429(t *testing.T) {
	limited := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
	mock := &mockSession{errs: []error{limited}}
	s, _ := New(Opts{ChannelID: "c", Session: mock})
	s.backoff = time.Millisecond

	if err := s.Publish(context.Background(), notify.Event{Title: "x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(mock.sent) != 1 {
		t.Errorf("sent = %d, want 1", len(mock.sent))
	}
}

func TestPublish_OtherErrorFails(t *testing.T) {
	mock := &mockSession{errs: []error{errors.New("missing access")}}
	s, _ := New(Opts{ChannelID: "c", Session: mock})
	if err := s.Publish(context.Background(), notify.Event{Title: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseHexColor(t *testing.T) {
	tests := map[string]int{
		"#36a64f": 0x36a64f,
		"E53935":  0xe53935,
		"":        0,
	}
	for in, want := range tests {
		if got := parseHexColor(in); got != want {
			t.Errorf("parseHexColor(%q) = %x, want %x", in, got, want)
		}
	}
}
