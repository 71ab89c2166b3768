// Package bootstrap 存储端的一次性初始化：建表、建类/集合、图约束与种子事件
package bootstrap

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"dataflux-query-api/internal/infrastructure/messaging"
	"dataflux-query-api/pkg/logger"
)

// Step 一个初始化步骤，必须可重复执行
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner 按顺序执行初始化步骤，遇错即停
type Runner struct {
	steps []Step
}

// NewRunner 创建初始化执行器
func NewRunner(steps ...Step) *Runner {
	return &Runner{steps: steps}
}

// Add 追加步骤
func (r *Runner) Add(name string, run func(ctx context.Context) error) {
	r.steps = append(r.steps, Step{Name: name, Run: run})
}

// Run 执行全部步骤
func (r *Runner) Run(ctx context.Context) error {
	for _, s := range r.steps {
		logger.Info(ctx, "bootstrap step started", "step", s.Name)
		if err := s.Run(ctx); err != nil {
			return fmt.Errorf("bootstrap step %s: %w", s.Name, err)
		}
		logger.Info(ctx, "bootstrap step completed", "step", s.Name)
	}
	return nil
}

// Publisher 事件发布能力，由 messaging.Producer 实现
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, payload any) (string, error)
}

// seedLine JSONL 中的一行：{"type": "...", "payload": {...}}
type seedLine struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

var seedEventTypes = map[string]struct{}{
	messaging.EventAssetIndexed:       {},
	messaging.EventSegmentDetected:    {},
	messaging.EventSimilarityComputed: {},
	messaging.EventAssetDeleted:       {},
}

// Seed 读取 JSONL 并逐行发布到写侧事件流，空行与 # 开头的行被忽略
//
// 任意一行非法时在发布前整体失败。
func Seed(ctx context.Context, r io.Reader, pub Publisher) (int, error) {
	var lines []seedLine
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var line seedLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			return 0, fmt.Errorf("seed line %d: %w", lineNo, err)
		}
		if _, ok := seedEventTypes[line.Type]; !ok {
			return 0, fmt.Errorf("seed line %d: unknown event type %q", lineNo, line.Type)
		}
		if len(line.Payload) == 0 {
			return 0, fmt.Errorf("seed line %d: payload is required", lineNo)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	for i, line := range lines {
		if _, err := pub.PublishEvent(ctx, line.Type, line.Payload); err != nil {
			return i, fmt.Errorf("publish seed event %d: %w", i+1, err)
		}
	}
	return len(lines), nil
}
