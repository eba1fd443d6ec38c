// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"

	"club-directory-be/internal/dto"
	"club-directory-be/internal/pkg/logger"
	"club-directory-be/internal/pkg/mailer"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// IRefundEmailQueue hands refund notifications to the background mailer.
type IRefundEmailQueue interface {
	EnqueueRefundEmail(ctx context.Context, toEmail, subject string, amount float64) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type refundEmailQueue struct {
	publisher message.Publisher
	topicName string
}

func NewRefundEmailQueue(publisher message.Publisher, topicName string) IRefundEmailQueue {
	return &refundEmailQueue{publisher: publisher, topicName: topicName}
}

func (q *refundEmailQueue) EnqueueRefundEmail(ctx context.Context, toEmail, subject string, amount float64) error {
	payload, err := json.Marshal(dto.RefundEmailMessage{To: toEmail, Subject: subject, Amount: amount})
	if err != nil {
		return fmt.Errorf("marshal refund email: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return q.publisher.Publish(q.topicName, msg)
}

type consumerService struct {
	subscriber   message.Subscriber
	topicName    string
	emailService mailer.IEmailService
	logger       logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	emailService mailer.IEmailService,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:   subscriber,
		topicName:    topicName,
		emailService: emailService,
		logger:       logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

// processMessage always acks: email is best-effort and a failed send is only logged.
func (cs *consumerService) processMessage(msg *message.Message) {
	defer msg.Ack()

	var payload dto.RefundEmailMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(logger.ModuleMailer, "Invalid refund email message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	if err := cs.emailService.SendRefundEmail(payload.To, payload.Subject, payload.Amount); err != nil {
		cs.logger.Error(logger.ModuleMailer, "Refund email not delivered", map[string]interface{}{
			"message_id": msg.UUID,
			"to":         payload.To,
			"error":      err.Error(),
		})
	}
}
