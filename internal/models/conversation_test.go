package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationID_OrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"b", "a"},
		{"Zed", "abe"},
		{"7f3c", "7f3c-1"},
	}
	for _, p := range pairs {
		assert.Equal(t, ConversationID(p[0], p[1]), ConversationID(p[1], p[0]), "pair %v", p)
	}
}

func TestConversationID_Format(t *testing.T) {
	assert.Equal(t, "u1_u2", ConversationID("u2", "u1"))
	// byte order, so upper case sorts first
	assert.Equal(t, "Zed_abe", ConversationID("abe", "Zed"))
}

func TestConversation_OtherParticipant(t *testing.T) {
	c := Conversation{ID: "a_b", ParticipantA: "a", ParticipantB: "b"}
	assert.Equal(t, "b", c.OtherParticipant("a"))
	assert.Equal(t, "a", c.OtherParticipant("b"))
	assert.True(t, c.HasParticipant("a"))
	assert.False(t, c.HasParticipant("c"))
	assert.False(t, c.HasMessages())
}

func TestMessage_IsBetween(t *testing.T) {
	m := Message{SenderID: "a", ReceiverID: "b"}
	assert.True(t, m.IsBetween("a", "b"))
	assert.True(t, m.IsBetween("b", "a"))
	assert.False(t, m.IsBetween("a", "c"))
	assert.False(t, m.IsBetween("a", "a"))
}
