package collab

import (
	"context"
	"testing"
)

func TestNoopCollaborator_PersistChatLog(t *testing.T) {
	c := NewNoopCollaborator()
	if err := c.PersistChatLog(context.Background(), "alice", "gpt-4o", "hi", "hello", "int-1"); err != nil {
		t.Fatalf("PersistChatLog() error = %v", err)
	}
	logs := c.ChatLogs()
	if len(logs) != 1 {
		t.Fatalf("len(ChatLogs()) = %d, want 1", len(logs))
	}
	if logs[0].InteractionID != "int-1" {
		t.Errorf("InteractionID = %q, want int-1", logs[0].InteractionID)
	}
}

func TestNoopCollaborator_MemoryRoundTrip(t *testing.T) {
	c := NewNoopCollaborator()
	ctx := context.Background()

	mem, err := c.GetMemory(ctx, "alice")
	if err != nil {
		t.Fatalf("GetMemory() error = %v", err)
	}
	if mem != "" {
		t.Errorf("initial memory = %q, want empty", mem)
	}

	if err := c.UpdateMemory(ctx, "alice", "likes go"); err != nil {
		t.Fatalf("UpdateMemory() error = %v", err)
	}
	if err := c.UpdateMemory(ctx, "alice", "prefers concise answers"); err != nil {
		t.Fatalf("UpdateMemory() error = %v", err)
	}

	mem, err = c.GetMemory(ctx, "alice")
	if err != nil {
		t.Fatalf("GetMemory() error = %v", err)
	}
	if mem != "likes go\nprefers concise answers" {
		t.Errorf("memory = %q, want appended entries", mem)
	}
}

func TestNoopCollaborator_MemoryIsolatedPerUser(t *testing.T) {
	c := NewNoopCollaborator()
	ctx := context.Background()
	_ = c.UpdateMemory(ctx, "alice", "alice fact")
	_ = c.UpdateMemory(ctx, "bob", "bob fact")

	aliceMem, _ := c.GetMemory(ctx, "alice")
	bobMem, _ := c.GetMemory(ctx, "bob")
	if aliceMem != "alice fact" {
		t.Errorf("alice memory = %q", aliceMem)
	}
	if bobMem != "bob fact" {
		t.Errorf("bob memory = %q", bobMem)
	}
}

func TestNoopCollaborator_AppendToSession(t *testing.T) {
	c := NewNoopCollaborator()
	ctx := context.Background()
	if err := c.AppendToSession(ctx, "sess-1", "alice", "hello", "gpt-4o"); err != nil {
		t.Fatalf("AppendToSession() error = %v", err)
	}
	if err := c.AppendToSession(ctx, "sess-1", "alice", "follow up", "gpt-4o"); err != nil {
		t.Fatalf("AppendToSession() error = %v", err)
	}
	msgs := c.SessionMessages("sess-1")
	if len(msgs) != 2 {
		t.Fatalf("len(SessionMessages()) = %d, want 2", len(msgs))
	}
	if msgs[1].Message != "follow up" {
		t.Errorf("second message = %q, want %q", msgs[1].Message, "follow up")
	}
}

func TestNoopCollaborator_SatisfiesInterface(t *testing.T) {
	var _ Collaborator = NewNoopCollaborator()
}
