package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/models"
)

var errChannelUnavailable = errors.New("channel is not available")

// ParsedEvent 解析成功事件, 供下载客户端消费
type ParsedEvent struct {
	EventID   string    `json:"event_id"`
	VideoID   string    `json:"video_id"`
	SourceURL string    `json:"source_url"`
	VideoURL  string    `json:"video_url"`
	CoverURL  string    `json:"cover_url,omitempty"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	IsImage   bool      `json:"is_image"`
	Images    []string  `json:"images,omitempty"`
	Strategy  string    `json:"strategy"`
	ParsedAt  time.Time `json:"parsed_at"`
}

// NewParsedEvent 由元数据构造事件
func NewParsedEvent(meta *models.VideoMetadata, sourceURL string, now time.Time) *ParsedEvent {
	return &ParsedEvent{
		EventID:   uuid.New().String(),
		VideoID:   meta.VideoID,
		SourceURL: sourceURL,
		VideoURL:  meta.VideoURL,
		CoverURL:  meta.CoverURL,
		Title:     meta.Title,
		Author:    meta.Author,
		IsImage:   meta.IsImage,
		Images:    meta.Images,
		Strategy:  meta.Strategy,
		ParsedAt:  now.UTC(),
	}
}

// Publisher 解析事件发布
type Publisher interface {
	PublishParsed(ctx context.Context, meta *models.VideoMetadata, sourceURL string) error
	Close() error
}

// NopPublisher 未启用消息队列时使用
type NopPublisher struct{}

// PublishParsed 不做任何事
func (NopPublisher) PublishParsed(context.Context, *models.VideoMetadata, string) error { return nil }

// Close 不做任何事
func (NopPublisher) Close() error { return nil }

// channel amqp.Channel 中用到的方法
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher RabbitMQ 发布器
type RabbitPublisher struct {
	cfg     config.RabbitMQConfig
	logger  *zap.Logger
	conn    *amqp.Connection
	channel channel
	mu      sync.Mutex
	closing atomic.Bool
}

// NewRabbitPublisher 连接并声明交换机与队列, 之后在后台自动重连
func NewRabbitPublisher(cfg config.RabbitMQConfig, logger *zap.Logger) (*RabbitPublisher, error) {
	p := &RabbitPublisher{
		cfg:    cfg,
		logger: logger.Named("events"),
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	go p.watchConnection()

	return p, nil
}

// connect 连接到 RabbitMQ
func (p *RabbitPublisher) connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declare(ch, p.cfg); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	p.conn = conn
	p.channel = ch

	p.logger.Info("Connected to RabbitMQ",
		zap.String("exchange", p.cfg.Exchange),
		zap.String("queue", p.cfg.Queue),
	)
	return nil
}

// declare 声明持久化的 direct 交换机和队列并绑定
func declare(ch *amqp.Channel, cfg config.RabbitMQConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}

// watchConnection 连接断开后重连, 最多尝试5次
func (p *RabbitPublisher) watchConnection() {
	for !p.closing.Load() {
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			time.Sleep(time.Second)
			continue
		}

		closeC := conn.NotifyClose(make(chan *amqp.Error, 1))
		if err := <-closeC; err != nil {
			p.logger.Warn("RabbitMQ connection closed, reconnecting", zap.Error(err))
		}

		if p.closing.Load() {
			return
		}

		p.mu.Lock()
		p.conn = nil
		p.channel = nil
		p.mu.Unlock()

		for i := 0; i < 5; i++ {
			if err := p.connect(); err != nil {
				p.logger.Warn("Reconnect attempt failed", zap.Int("attempt", i+1), zap.Error(err))
				time.Sleep(time.Duration(i+1) * time.Second)
				continue
			}
			break
		}
	}
}

// PublishParsed 发布解析成功事件
func (p *RabbitPublisher) PublishParsed(ctx context.Context, meta *models.VideoMetadata, sourceURL string) error {
	event := NewParsedEvent(meta, sourceURL, time.Now())
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return errChannelUnavailable
	}

	err = p.channel.PublishWithContext(ctx,
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.EventID,
			Body:         body,
			Timestamp:    event.ParsedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("Published parsed event",
		zap.String("event_id", event.EventID),
		zap.String("video_id", event.VideoID),
	)
	return nil
}

// Close 关闭连接
func (p *RabbitPublisher) Close() error {
	p.closing.Store(true)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
