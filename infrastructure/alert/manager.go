package alert

import (
	"fmt"
	"sync"
	"time"
)

// Alert 流动性事件通知
type Alert struct {
	Level     string                 // "INFO", "WARNING", "ERROR", "CRITICAL"
	Rule      string                 // 触发规则: spread_spike / liquidity_gap
	Message   string                 // 通知消息
	TickTime  time.Time              // 触发事件的行情时间
	Timestamp time.Time              // 通知时间
	Fields    map[string]interface{} // 附加字段
}

// Channel 通知通道接口
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Manager 通知管理器
type Manager struct {
	channels []Channel
	throttle *Throttler
	mu       sync.RWMutex
}

// Throttler 通知限流器
type Throttler struct {
	lastSent map[string]time.Time
	interval time.Duration
	mu       sync.RWMutex
}

// NewThrottler 创建限流器
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
	}
}

// Allow 检查是否允许发送（限流）
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	lastTime, exists := t.lastSent[key]

	if !exists || now.Sub(lastTime) >= t.interval {
		t.lastSent[key] = now
		return true
	}

	return false
}

// Reset 重置限流器
func (t *Throttler) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastSent, key)
}

// Clear 清空所有限流记录
func (t *Throttler) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSent = make(map[string]time.Time)
}

// NewManager 创建通知管理器
func NewManager(channels []Channel, throttleInterval time.Duration) *Manager {
	return &Manager{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
	}
}

// SendAlert 发送通知。同规则同级别的通知在限流间隔内只发一次。
func (m *Manager) SendAlert(alert Alert) error {
	// 设置时间戳
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	// 构建限流key
	key := fmt.Sprintf("%s:%s", alert.Level, alert.Rule)

	// 检查限流
	if !m.throttle.Allow(key) {
		return nil // 被限流，静默忽略
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// 发送到所有通道
	var lastErr error
	successCount := 0

	for _, ch := range m.channels {
		if err := ch.Send(alert); err != nil {
			lastErr = fmt.Errorf("channel %s failed: %w", ch.Name(), err)
		} else {
			successCount++
		}
	}

	// 如果所有通道都失败，返回最后一个错误
	if successCount == 0 && lastErr != nil {
		return lastErr
	}

	return nil
}

// SendSpreadSpike 发送价差激增事件通知
func (m *Manager) SendSpreadSpike(tickTime time.Time, spreadZ float64, fields map[string]interface{}) error {
	return m.SendAlert(Alert{
		Level:    "WARNING",
		Rule:     "spread_spike",
		Message:  fmt.Sprintf("spread z-score %.2f above threshold", spreadZ),
		TickTime: tickTime,
		Fields:   fields,
	})
}

// SendLiquidityGap 发送流动性缺口事件通知
func (m *Manager) SendLiquidityGap(tickTime time.Time, topDepth, depthMed float64, fields map[string]interface{}) error {
	return m.SendAlert(Alert{
		Level:    "WARNING",
		Rule:     "liquidity_gap",
		Message:  fmt.Sprintf("top depth %.0f collapsed below rolling median %.0f", topDepth, depthMed),
		TickTime: tickTime,
		Fields:   fields,
	})
}

// AddChannel 添加通知通道
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// GetChannels 获取所有通道
func (m *Manager) GetChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}

// ResetThrottle 重置限流器
func (m *Manager) ResetThrottle() {
	m.throttle.Clear()
}
