package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"apiverse/internal/model"
	"apiverse/internal/repository"
)

// UsageLogWorker drains the usage-log queue into MySQL so audit writes never
// sit on the search request path.
type UsageLogWorker struct {
	conn      *amqp.Connection
	repo      *repository.UsageLogRepository
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewUsageLogWorker(conn *amqp.Connection, repo *repository.UsageLogRepository, queueName string) *UsageLogWorker {
	return &UsageLogWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
	}
}

func (w *UsageLogWorker) Start(ctx context.Context) error {
	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}

	if _, err := ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare usage log queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume usage log queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()
		for {
			select {
			case <-workerCtx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(delivery)
			}
		}
	}()

	return nil
}

func (w *UsageLogWorker) handle(delivery amqp.Delivery) {
	var entry model.UsageLog
	if err := json.Unmarshal(delivery.Body, &entry); err != nil {
		log.Printf("usage log worker: drop malformed payload: %v", err)
		_ = delivery.Nack(false, false)
		return
	}
	if err := w.repo.Create(&entry); err != nil {
		log.Printf("usage log worker: persist failed, requeueing: %v", err)
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

func (w *UsageLogWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
