package consumer

import (
	"sync"
	"time"
)

// 失败类型
const (
	ErrorKindParse  = "parse"
	ErrorKindCache  = "cache_failed"
	ErrorKindStream = "stream_failed"
	// ErrorKindQueueFull Redis 写入队列已满，快照未写入缓存和快照流
	ErrorKindQueueFull = "queue_full"
)

// Metrics 监控指标
type Metrics struct {
	mu sync.RWMutex

	// 消息处理统计
	messagesProcessed int64 // 收到的消息总数
	messagesSucceeded int64 // 成功派生状态的消息数
	messagesFailed    int64 // 无法解析而丢弃的消息数
	messagesSkipped   int64 // 跳过的消息数（null 快照）

	// 错误分类统计
	errorsParse  int64 // 解析错误
	errorsCache  int64 // 状态缓存写入失败（不影响消息成功）
	errorsStream int64 // 快照流写入失败（不影响消息成功）
	errorsQueue  int64 // 写入队列已满被丢弃

	// 性能指标
	totalProcessingTime time.Duration
	lastProcessTime     time.Time

	startTime time.Time
}

// MetricsSnapshot 指标快照（可直接序列化）
type MetricsSnapshot struct {
	MessagesProcessed   int64         `json:"messages_processed"`
	MessagesSucceeded   int64         `json:"messages_succeeded"`
	MessagesFailed      int64         `json:"messages_failed"`
	MessagesSkipped     int64         `json:"messages_skipped"`
	ErrorsParse         int64         `json:"errors_parse"`
	ErrorsCache         int64         `json:"errors_cache_failed"`
	ErrorsStream        int64         `json:"errors_stream_failed"`
	ErrorsQueueFull     int64         `json:"errors_queue_full"`
	TotalProcessingTime time.Duration `json:"total_processing_time_ns"`
	LastProcessTime     time.Time     `json:"last_process_time"`
	StartTime           time.Time     `json:"start_time"`
}

// NewMetrics 创建指标
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		MessagesProcessed:   m.messagesProcessed,
		MessagesSucceeded:   m.messagesSucceeded,
		MessagesFailed:      m.messagesFailed,
		MessagesSkipped:     m.messagesSkipped,
		ErrorsParse:         m.errorsParse,
		ErrorsCache:         m.errorsCache,
		ErrorsStream:        m.errorsStream,
		ErrorsQueueFull:     m.errorsQueue,
		TotalProcessingTime: m.totalProcessingTime,
		LastProcessTime:     m.lastProcessTime,
		StartTime:           m.startTime,
	}
}

// IncrementProcessed 增加处理计数
func (m *Metrics) IncrementProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesProcessed++
}

// IncrementSucceeded 增加成功计数
func (m *Metrics) IncrementSucceeded(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesSucceeded++
	m.totalProcessingTime += duration
	m.lastProcessTime = time.Now()
}

// IncrementFailed 增加失败计数（消息被丢弃）
func (m *Metrics) IncrementFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesFailed++
	if errorType == ErrorKindParse {
		m.errorsParse++
	}
}

// IncrementSinkError 下游写入失败计数；消息本身仍算成功
func (m *Metrics) IncrementSinkError(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch errorType {
	case ErrorKindCache:
		m.errorsCache++
	case ErrorKindStream:
		m.errorsStream++
	case ErrorKindQueueFull:
		m.errorsQueue++
	}
}

// IncrementSkipped 增加跳过计数
func (m *Metrics) IncrementSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesSkipped++
}

// AvgProcessingTime 平均处理时间
func (s MetricsSnapshot) AvgProcessingTime() time.Duration {
	if s.MessagesSucceeded == 0 {
		return 0
	}
	return s.TotalProcessingTime / time.Duration(s.MessagesSucceeded)
}

// SuccessRate 成功率（百分比）
func (s MetricsSnapshot) SuccessRate() float64 {
	if s.MessagesProcessed == 0 {
		return 0
	}
	return float64(s.MessagesSucceeded) / float64(s.MessagesProcessed) * 100
}
