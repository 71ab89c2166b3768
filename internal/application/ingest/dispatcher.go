package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"dataflux-query-api/internal/infrastructure/messaging"
)

// Dispatcher 进程内直接应用事件，不经过 Redis Stream
//
// 实现 HandlerRegistrar 与 bootstrap.Publisher，供初始化时直写各存储。
type Dispatcher struct {
	handlers map[string]messaging.MessageHandler
}

// NewDispatcher 创建进程内分发器
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]messaging.MessageHandler)}
}

// RegisterHandler 注册处理器
func (d *Dispatcher) RegisterHandler(msgType string, handler messaging.MessageHandler) {
	d.handlers[msgType] = handler
}

// PublishEvent 同步执行对应处理器
func (d *Dispatcher) PublishEvent(ctx context.Context, eventType string, payload any) (string, error) {
	h, ok := d.handlers[eventType]
	if !ok {
		return "", fmt.Errorf("no handler registered for %s", eventType)
	}
	msg, err := messaging.NewMessage(uuid.NewString(), eventType, payload)
	if err != nil {
		return "", fmt.Errorf("failed to build message: %w", err)
	}
	if err := h(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}
