// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"

	"github.com/addonbridge/addonbridge/internal/registry"
)

type (
	// Message is one addon message recorded by a Sender.
	Message struct {
		Prefix  string
		Text    string
		Channel int
		To      string
	}

	// Sender is a registry.Sender that records every message sent through it.
	Sender struct {
		PlayerName string
		GM         bool

		mu   sync.Mutex
		sent []Message
	}
)

var _ registry.Sender = (*Sender)(nil)

// NewSender returns a recording sender.
func NewSender(name string, gm bool) *Sender {
	return &Sender{PlayerName: name, GM: gm}
}

// Name implements registry.Sender.
func (s *Sender) Name() string { return s.PlayerName }

// IsGameMaster implements registry.Sender.
func (s *Sender) IsGameMaster() bool { return s.GM }

// SendAddonMessage implements registry.Sender.
func (s *Sender) SendAddonMessage(prefix, msg string, channel int, to registry.Sender) {
	m := Message{Prefix: prefix, Text: msg, Channel: channel}
	if to != nil {
		m.To = to.Name()
	}
	s.mu.Lock()
	s.sent = append(s.sent, m)
	s.mu.Unlock()
}

// Sent returns a copy of the recorded messages.
func (s *Sender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
