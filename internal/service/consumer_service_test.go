package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"club-directory-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmailService struct {
	mu   sync.Mutex
	sent []queuedEmail
}

func (s *recordingEmailService) SendRefundEmail(to, subject string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, queuedEmail{To: to, Subject: subject, Amount: amount})
	return nil
}

func (s *recordingEmailService) Sent() []queuedEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queuedEmail(nil), s.sent...)
}

func TestRefundEmailQueue_DeliversToMailer(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	mailer := &recordingEmailService{}
	consumer := NewConsumerService(pubSub, "billing.refund_email", mailer, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.Consume(ctx))

	queue := NewRefundEmailQueue(pubSub, "billing.refund_email")
	require.NoError(t, queue.EnqueueRefundEmail(context.Background(), "member@example.com", RefundEmailSubject, 60))

	assert.Eventually(t, func() bool { return len(mailer.Sent()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, queuedEmail{To: "member@example.com", Subject: RefundEmailSubject, Amount: 60}, mailer.Sent()[0])
}
