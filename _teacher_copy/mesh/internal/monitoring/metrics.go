package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/redbco/redb-open/pkg/logger"
)

// MetricsCollector collects and manages metrics
type MetricsCollector struct {
	logger *logger.Logger
	mu     sync.RWMutex

	// Node metrics
	nodeStatus    map[string]string
	nodePeers     map[string][]string
	nodeUptime    map[string]time.Duration
	nodeLastSeen  map[string]time.Time
	nodeStartTime map[string]time.Time
	nodeRestarts  map[string]int

	// Message metrics
	messageCount   map[string]int64
	messageLatency map[string]time.Duration
	messageErrors  map[string]int64
	messageSize    map[string]int64

	// Routing metrics
	routeCount   map[string]int
	routeLatency map[string]time.Duration
	routeErrors  map[string]int
	routeHops    map[string]int

	// Consensus metrics
	consensusTerm     uint64
	consensusIndex    uint64
	consensusVotes    map[string]int
	consensusLatency  time.Duration
	consensusErrors   int64
	consensusLogSize  int64
	consensusLogCount int64

	// System metrics
	systemCPUUsage    float64
	systemMemoryUsage float64
	systemDiskUsage   float64
	systemNetworkIO   map[string]int64
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(logger *logger.Logger) *MetricsCollector {
	return &MetricsCollector{
		logger: logger,
		mu:     sync.RWMutex{},

		nodeStatus:    make(map[string]string),
		nodePeers:     make(map[string][]string),
		nodeUptime:    make(map[string]time.Duration),
		nodeLastSeen:  make(map[string]time.Time),
		nodeStartTime: make(map[string]time.Time),
		nodeRestarts:  make(map[string]int),

		messageCount:   make(map[string]int64),
		messageLatency: make(map[string]time.Duration),
		messageErrors:  make(map[string]int64),
		messageSize:    make(map[string]int64),

		routeCount:   make(map[string]int),
		routeLatency: make(map[string]time.Duration),
		routeErrors:  make(map[string]int),
		routeHops:    make(map[string]int),

		consensusVotes: make(map[string]int),

		systemNetworkIO: make(map[string]int64),
	}
}

// UpdateNodeMetrics updates node-related metrics
func (m *MetricsCollector) UpdateNodeMetrics(nodeID string, status string, peers []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nodeStatus[nodeID] = status
	m.nodePeers[nodeID] = peers
	m.nodeLastSeen[nodeID] = time.Now()

	if status == "active" && m.nodeStartTime[nodeID].IsZero() {
		m.nodeStartTime[nodeID] = time.Now()
	} else if status == "inactive" {
		m.nodeRestarts[nodeID]++
	}

	m.nodeUptime[nodeID] = time.Since(m.nodeStartTime[nodeID])
}

// UpdateMessageMetrics updates message-related metrics
func (m *MetricsCollector) UpdateMessageMetrics(msgType string, latency time.Duration, size int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messageCount[msgType]++
	m.messageLatency[msgType] = latency
	m.messageSize[msgType] += size

	if err != nil {
		m.messageErrors[msgType]++
	}
}

// UpdateRouteMetrics updates routing-related metrics
func (m *MetricsCollector) UpdateRouteMetrics(destination string, latency time.Duration, hops int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.routeCount[destination]++
	m.routeLatency[destination] = latency
	m.routeHops[destination] = hops

	if err != nil {
		m.routeErrors[destination]++
	}
}

// UpdateConsensusMetrics updates consensus-related metrics
func (m *MetricsCollector) UpdateConsensusMetrics(term, index uint64, latency time.Duration, logSize, logCount int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consensusTerm = term
	m.consensusIndex = index
	m.consensusLatency = latency
	m.consensusLogSize = logSize
	m.consensusLogCount = logCount

	if err != nil {
		m.consensusErrors++
	}
}

// UpdateSystemMetrics updates system-related metrics
func (m *MetricsCollector) UpdateSystemMetrics(cpu, memory, disk float64, networkIO map[string]int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.systemCPUUsage = cpu
	m.systemMemoryUsage = memory
	m.systemDiskUsage = disk
	m.systemNetworkIO = networkIO
}

// GetNodeMetrics returns node-related metrics
func (m *MetricsCollector) GetNodeMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := make(map[string]interface{})
	for nodeID := range m.nodeStatus {
		metrics[nodeID] = map[string]interface{}{
			"status":     m.nodeStatus[nodeID],
			"peers":      m.nodePeers[nodeID],
			"uptime":     m.nodeUptime[nodeID],
			"last_seen":  m.nodeLastSeen[nodeID],
			"start_time": m.nodeStartTime[nodeID],
			"restarts":   m.nodeRestarts[nodeID],
		}
	}
	return metrics
}

// GetMessageMetrics returns message-related metrics
func (m *MetricsCollector) GetMessageMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := make(map[string]interface{})
	for msgType := range m.messageCount {
		metrics[msgType] = map[string]interface{}{
			"count":   m.messageCount[msgType],
			"latency": m.messageLatency[msgType],
			"errors":  m.messageErrors[msgType],
			"size":    m.messageSize[msgType],
		}
	}
	return metrics
}

// GetRouteMetrics returns routing-related metrics
func (m *MetricsCollector) GetRouteMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := make(map[string]interface{})
	for dest := range m.routeCount {
		metrics[dest] = map[string]interface{}{
			"count":   m.routeCount[dest],
			"latency": m.routeLatency[dest],
			"errors":  m.routeErrors[dest],
			"hops":    m.routeHops[dest],
		}
	}
	return metrics
}

// GetConsensusMetrics returns consensus-related metrics
func (m *MetricsCollector) GetConsensusMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"term":      m.consensusTerm,
		"index":     m.consensusIndex,
		"votes":     m.consensusVotes,
		"latency":   m.consensusLatency,
		"errors":    m.consensusErrors,
		"log_size":  m.consensusLogSize,
		"log_count": m.consensusLogCount,
	}
}

// GetSystemMetrics returns system-related metrics
func (m *MetricsCollector) GetSystemMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"cpu_usage":    m.systemCPUUsage,
		"memory_usage": m.systemMemoryUsage,
		"disk_usage":   m.systemDiskUsage,
		"network_io":   m.systemNetworkIO,
	}
}

// GetAllMetrics returns all metrics
func (m *MetricsCollector) GetAllMetrics() map[string]interface{} {
	return map[string]interface{}{
		"nodes":     m.GetNodeMetrics(),
		"messages":  m.GetMessageMetrics(),
		"routes":    m.GetRouteMetrics(),
		"consensus": m.GetConsensusMetrics(),
		"system":    m.GetSystemMetrics(),
	}
}

// Start starts the metrics collector
func (m *MetricsCollector) Start(ctx context.Context) error {
	// Start periodic metrics collection
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// TODO: Collect system metrics
				// TODO: Update metrics in storage
			}
		}
	}()

	return nil
}

// Stop stops the metrics collector
func (m *MetricsCollector) Stop() error {
	// TODO: Implement cleanup
	return nil
}
