package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luisclicio/fastzap-chat-app-tech-test/broker"
	"github.com/luisclicio/fastzap-chat-app-tech-test/events"
	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
)

// SafetyClassifier is the opaque external moderation decision.
type SafetyClassifier interface {
	Classify(ctx context.Context, content string) (safe bool, err error)
}

type ModerationConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
	QueueSize   int
}

// ModerationService is the two-phase message pipeline: a submitted
// message is persisted pending, classified asynchronously, and either
// approved and broadcast or rejected and never seen again.
//
// One worker per room consumes submissions FIFO, so approved messages
// reach subscribers in submission order. Retrying a failed classifier
// call blocks the room's queue on purpose; reordering would be worse
// than waiting.
type ModerationService struct {
	messages   repository.MessageRepository
	users      repository.UserRepository
	broker     broker.Broker
	classifier SafetyClassifier
	cfg        ModerationConfig
	log        *zap.Logger

	mu     sync.Mutex
	queues map[int]chan string
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewModerationService(messages repository.MessageRepository, users repository.UserRepository, b broker.Broker, classifier SafetyClassifier, cfg ModerationConfig, log *zap.Logger) *ModerationService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ModerationService{
		messages:   messages,
		users:      users,
		broker:     b,
		classifier: classifier,
		cfg:        cfg,
		log:        log,
		queues:     make(map[int]chan string),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SubmitText persists a pending message and enqueues it for
// classification. It returns once the message is stored; the caller
// never waits for the moderation outcome.
func (s *ModerationService) SubmitText(roomID, authorID int, content string) error {
	msg, err := s.messages.CreatePending(roomID, authorID, content)
	if err != nil {
		return err
	}
	s.enqueue(roomID, msg.ID)
	return nil
}

// Complete applies a classification outcome. It is safe to call more
// than once per message: the store's pending-only transition rejects the
// second call and no second broadcast happens.
func (s *ModerationService) Complete(messageID string, safe bool) error {
	status := models.MessageStatusRejected
	if safe {
		status = models.MessageStatusApproved
	}

	if err := s.messages.SetStatus(messageID, status); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			s.log.Info("duplicate moderation completion ignored", zap.String("message_id", messageID))
			return nil
		}
		return err
	}
	if !safe {
		s.log.Info("message rejected by moderation", zap.String("message_id", messageID))
		return nil
	}

	msg, err := s.messages.Get(messageID)
	if err != nil {
		return err
	}
	author, err := s.users.FindByID(msg.AuthorID)
	if err != nil {
		return err
	}
	payload, err := events.Marshal(events.NewChatMessage(msg, author))
	if err != nil {
		return err
	}
	return s.broker.Publish(s.ctx, msg.RoomID, payload)
}

// Close stops the room workers. Queued messages stay pending in the
// store; a restart can pick them up.
func (s *ModerationService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *ModerationService) enqueue(roomID int, messageID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Warn("moderation pipeline closed, message left pending",
			zap.String("message_id", messageID))
		return
	}
	ch, ok := s.queues[roomID]
	if !ok {
		ch = make(chan string, s.cfg.QueueSize)
		s.queues[roomID] = ch
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.roomWorker(ch)
		}()
	}
	s.mu.Unlock()

	select {
	case ch <- messageID:
	default:
		s.log.Error("moderation queue full, message left pending",
			zap.Int("room_id", roomID), zap.String("message_id", messageID))
	}
}

func (s *ModerationService) roomWorker(ch <-chan string) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case messageID := <-ch:
			s.process(messageID)
		}
	}
}

func (s *ModerationService) process(messageID string) {
	msg, err := s.messages.Get(messageID)
	if err != nil {
		s.log.Error("message lookup failed", zap.String("message_id", messageID), zap.Error(err))
		return
	}
	if msg.Status != models.MessageStatusPending {
		return
	}

	safe, err := s.classifyWithRetry(msg.Content)
	if err != nil {
		// Exhausted attempts: never guess. The message stays pending and
		// is never broadcast.
		s.log.Error("classifier unavailable, message left pending",
			zap.String("message_id", messageID), zap.Error(err))
		return
	}

	if err := s.Complete(messageID, safe); err != nil {
		s.log.Error("moderation completion failed",
			zap.String("message_id", messageID), zap.Error(err))
	}
}

func (s *ModerationService) classifyWithRetry(content string) (bool, error) {
	backoff := s.cfg.Backoff
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
		safe, err := s.classifier.Classify(ctx, content)
		cancel()
		if err == nil {
			return safe, nil
		}
		if attempt >= s.cfg.MaxAttempts {
			return false, err
		}
		s.log.Warn("classifier call failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-time.After(backoff):
		case <-s.ctx.Done():
			return false, s.ctx.Err()
		}
		backoff *= 2
	}
}
