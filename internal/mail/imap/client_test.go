package imap

import (
	"testing"
	"time"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

func TestRecentRange(t *testing.T) {
	tests := []struct {
		name        string
		numMessages uint32
		max         int
		wantFirst   uint32
		wantLast    uint32
	}{
		{"fewer messages than window", 10, 50, 1, 10},
		{"more messages than window", 120, 50, 71, 120},
		{"exactly the window", 50, 50, 1, 50},
		{"single message", 1, 50, 1, 1},
		{"window of one", 120, 1, 120, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := recentRange(tt.numMessages, tt.max)
			if first != tt.wantFirst || last != tt.wantLast {
				t.Errorf("recentRange(%d, %d) = %d..%d, want %d..%d",
					tt.numMessages, tt.max, first, last, tt.wantFirst, tt.wantLast)
			}
		})
	}
}

func TestMailItemFromFetch(t *testing.T) {
	internalDate := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	headerDate := internalDate.Add(-5 * time.Minute)
	message := &imapclient.FetchMessageBuffer{
		SeqNum:       42,
		Flags:        []goimap.Flag{goimap.FlagSeen, goimap.FlagAnswered},
		InternalDate: internalDate,
		Envelope: &goimap.Envelope{
			Date:    headerDate,
			Subject: "weekly status",
			From:    []goimap.Address{{Mailbox: "alice", Host: "co.example"}},
		},
	}

	item := mailItemFromFetch(message)

	if item.Subject != "weekly status" {
		t.Errorf("Subject = %q, want weekly status", item.Subject)
	}
	if item.Sender != "alice@co.example" {
		t.Errorf("Sender = %q, want alice@co.example", item.Sender)
	}
	if !item.Received.Equal(internalDate) {
		t.Errorf("Received = %v, want the internal date %v", item.Received, internalDate)
	}
	if !item.Read {
		t.Error("Read = false, want true for a \\Seen message")
	}
}

func TestMailItemFromFetch_Unseen(t *testing.T) {
	message := &imapclient.FetchMessageBuffer{
		Flags:    []goimap.Flag{goimap.FlagAnswered},
		Envelope: &goimap.Envelope{Subject: "pending"},
	}

	item := mailItemFromFetch(message)

	if item.Read {
		t.Error("Read = true, want false without \\Seen")
	}
}

func TestMailItemFromFetch_NoEnvelope(t *testing.T) {
	item := mailItemFromFetch(&imapclient.FetchMessageBuffer{})

	if item.Subject != "" || item.Sender != "" {
		t.Errorf("item = %+v, want empty subject and sender", item)
	}
	if !item.Received.IsZero() {
		t.Errorf("Received = %v, want zero time", item.Received)
	}
}

func TestMessageTime_FallsBackToEnvelopeDate(t *testing.T) {
	headerDate := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	message := &imapclient.FetchMessageBuffer{
		Envelope: &goimap.Envelope{Date: headerDate},
	}

	if got := messageTime(message); !got.Equal(headerDate) {
		t.Errorf("messageTime() = %v, want envelope date %v", got, headerDate)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Options{Address: "mail.co.example:993"}, nil)
	if client.sentFolder != DefaultSentFolder {
		t.Errorf("sentFolder = %q, want %q", client.sentFolder, DefaultSentFolder)
	}

	client = NewClient(Options{Address: "mail.co.example:993", SentFolder: "Sent"}, nil)
	if client.sentFolder != "Sent" {
		t.Errorf("sentFolder = %q, want Sent", client.sentFolder)
	}
}
