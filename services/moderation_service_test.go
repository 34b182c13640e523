package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luisclicio/fastzap-chat-app-tech-test/broker"
	"github.com/luisclicio/fastzap-chat-app-tech-test/events"
	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
)

// scriptedClassifier runs fn per call and counts calls.
type scriptedClassifier struct {
	mu    sync.Mutex
	calls int
	fn    func(content string) (bool, error)
}

func (c *scriptedClassifier) Classify(_ context.Context, content string) (bool, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.fn(content)
}

func (c *scriptedClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type moderationFixture struct {
	users      *repository.InMemoryUserRepo
	messages   *repository.InMemoryMessageRepo
	broker     *broker.MemoryBroker
	sub        broker.Subscription
	svc        *ModerationService
	author     *models.User
}

func newModerationFixture(t *testing.T, classifier SafetyClassifier) *moderationFixture {
	t.Helper()

	users := repository.NewInMemoryUserRepo()
	author, err := users.Create("alice", "x", false)
	require.NoError(t, err)

	messages := repository.NewInMemoryMessageRepo()
	b := broker.NewMemoryBroker()
	sub, err := b.Subscribe(context.Background(), 1)
	require.NoError(t, err)

	svc := NewModerationService(messages, users, b, classifier, ModerationConfig{
		Backoff: time.Millisecond,
		Timeout: time.Second,
	}, zap.NewNop())
	t.Cleanup(func() {
		svc.Close()
		b.Close()
	})

	return &moderationFixture{
		users:    users,
		messages: messages,
		broker:   b,
		sub:      sub,
		svc:      svc,
		author:   author,
	}
}

func (f *moderationFixture) waitChatMessage(t *testing.T) events.ChatMessage {
	t.Helper()
	select {
	case payload, ok := <-f.sub.C():
		require.True(t, ok, "subscription closed")
		var msg events.ChatMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
	return events.ChatMessage{}
}

func (f *moderationFixture) assertNoBroadcast(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case payload := <-f.sub.C():
		t.Fatalf("unexpected broadcast: %s", payload)
	case <-time.After(wait):
	}
}

func TestModeration_SafeMessageApprovedAndBroadcast(t *testing.T) {
	f := newModerationFixture(t, &scriptedClassifier{fn: func(string) (bool, error) { return true, nil }})

	require.NoError(t, f.svc.SubmitText(1, f.author.ID, "hello"))

	event := f.waitChatMessage(t)
	assert.Equal(t, events.TypeChatMessage, event.Type)
	assert.Equal(t, "hello", event.Content)
	assert.Equal(t, "alice", event.Author.Username)

	stored, err := f.messages.Get(event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusApproved, stored.Status)
}

func TestModeration_UnsafeMessageRejectedSilently(t *testing.T) {
	classified := make(chan struct{}, 1)
	f := newModerationFixture(t, &scriptedClassifier{fn: func(string) (bool, error) {
		classified <- struct{}{}
		return false, nil
	}})

	require.NoError(t, f.svc.SubmitText(1, f.author.ID, "spam"))

	select {
	case <-classified:
	case <-time.After(2 * time.Second):
		t.Fatal("classifier never called")
	}
	f.assertNoBroadcast(t, 150*time.Millisecond)

	approved, err := f.messages.ListApproved(1, 0)
	require.NoError(t, err)
	assert.Empty(t, approved)
}

func TestModeration_SubmissionOrderPreserved(t *testing.T) {
	f := newModerationFixture(t, &scriptedClassifier{fn: func(string) (bool, error) { return true, nil }})

	for _, content := range []string{"first", "second", "third"} {
		require.NoError(t, f.svc.SubmitText(1, f.author.ID, content))
	}

	for _, want := range []string{"first", "second", "third"} {
		assert.Equal(t, want, f.waitChatMessage(t).Content)
	}
}

func TestModeration_RetryUntilClassifierRecovers(t *testing.T) {
	classifier := &scriptedClassifier{}
	classifier.fn = func(string) (bool, error) {
		if classifier.callCount() < 3 {
			return false, errors.New("upstream unavailable")
		}
		return true, nil
	}
	f := newModerationFixture(t, classifier)

	require.NoError(t, f.svc.SubmitText(1, f.author.ID, "hello"))

	event := f.waitChatMessage(t)
	assert.Equal(t, "hello", event.Content)
	assert.Equal(t, 3, classifier.callCount())
}

func TestModeration_ExhaustedRetriesLeavePending(t *testing.T) {
	classifier := &scriptedClassifier{fn: func(string) (bool, error) {
		return false, errors.New("upstream unavailable")
	}}
	f := newModerationFixture(t, classifier)

	msg, err := f.messages.CreatePending(1, f.author.ID, "hello")
	require.NoError(t, err)

	// Drive the worker path synchronously; every attempt fails.
	f.svc.process(msg.ID)

	assert.Equal(t, f.svc.cfg.MaxAttempts, classifier.callCount())
	stored, err := f.messages.Get(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusPending, stored.Status,
		"an unreachable classifier must never approve or reject")
	f.assertNoBroadcast(t, 100*time.Millisecond)
}

func TestModeration_DuplicateCompletionIgnored(t *testing.T) {
	f := newModerationFixture(t, &scriptedClassifier{fn: func(string) (bool, error) { return true, nil }})

	msg, err := f.messages.CreatePending(1, f.author.ID, "hello")
	require.NoError(t, err)

	require.NoError(t, f.svc.Complete(msg.ID, true))
	f.waitChatMessage(t)

	// Replays of either verdict change nothing and broadcast nothing.
	require.NoError(t, f.svc.Complete(msg.ID, true))
	require.NoError(t, f.svc.Complete(msg.ID, false))
	f.assertNoBroadcast(t, 150*time.Millisecond)

	stored, err := f.messages.Get(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusApproved, stored.Status)
}

func TestModeration_RejectCompletionStoresVerdict(t *testing.T) {
	f := newModerationFixture(t, &scriptedClassifier{fn: func(string) (bool, error) { return true, nil }})

	msg, err := f.messages.CreatePending(1, f.author.ID, "spam")
	require.NoError(t, err)

	require.NoError(t, f.svc.Complete(msg.ID, false))

	stored, err := f.messages.Get(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusRejected, stored.Status)
	f.assertNoBroadcast(t, 100*time.Millisecond)
}

func TestModeration_CloseLeavesQueuedPending(t *testing.T) {
	f := newModerationFixture(t, &scriptedClassifier{fn: func(string) (bool, error) { return true, nil }})

	f.svc.Close()

	require.NoError(t, f.svc.SubmitText(1, f.author.ID, "late"))
	f.assertNoBroadcast(t, 100*time.Millisecond)
}
