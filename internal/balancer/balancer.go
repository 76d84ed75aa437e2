package balancer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Uuq114/JanusBedrock/internal/models"
)

const (
	StrategyRoundRobin = "round-robin"
	StrategyWeighted   = "weighted"
)

// Balancer 定义接入点负载均衡器接口
type Balancer interface {
	Next() *models.Endpoint
	AddEndpoint(endpoint *models.Endpoint)
	Len() int
}

// New 根据策略创建负载均衡器, 空策略默认轮询
func New(strategy string) (Balancer, error) {
	switch strategy {
	case "", StrategyRoundRobin:
		return NewRoundRobinBalancer(), nil
	case StrategyWeighted:
		return NewWeightedBalancer(), nil
	}
	return nil, fmt.Errorf("unknown balancing strategy %q", strategy)
}

// RoundRobinBalancer 实现轮询负载均衡
type RoundRobinBalancer struct {
	endpoints []*models.Endpoint
	index     uint64
	mu        sync.RWMutex
}

// WeightedBalancer 实现加权轮询负载均衡
type WeightedBalancer struct {
	endpoints []*models.Endpoint
	index     uint64
	mu        sync.RWMutex
}

func NewRoundRobinBalancer() *RoundRobinBalancer {
	return &RoundRobinBalancer{
		endpoints: make([]*models.Endpoint, 0),
	}
}

func NewWeightedBalancer() *WeightedBalancer {
	return &WeightedBalancer{
		endpoints: make([]*models.Endpoint, 0),
	}
}

// Next 获取下一个接入点（轮询）
func (rb *RoundRobinBalancer) Next() *models.Endpoint {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if len(rb.endpoints) == 0 {
		return nil
	}

	index := (atomic.AddUint64(&rb.index, 1) - 1) % uint64(len(rb.endpoints))
	return rb.endpoints[index]
}

// Next 获取下一个接入点（加权轮询）
func (wb *WeightedBalancer) Next() *models.Endpoint {
	wb.mu.RLock()
	defer wb.mu.RUnlock()

	if len(wb.endpoints) == 0 {
		return nil
	}

	totalWeight := 0
	for _, ep := range wb.endpoints {
		totalWeight += ep.Weight
	}
	if totalWeight <= 0 {
		return wb.endpoints[0]
	}

	index := (atomic.AddUint64(&wb.index, 1) - 1) % uint64(totalWeight)

	currentWeight := 0
	for _, ep := range wb.endpoints {
		currentWeight += ep.Weight
		if uint64(currentWeight) > index {
			return ep
		}
	}

	return wb.endpoints[0]
}

func (rb *RoundRobinBalancer) AddEndpoint(endpoint *models.Endpoint) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.endpoints = append(rb.endpoints, endpoint)
}

func (rb *RoundRobinBalancer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return len(rb.endpoints)
}

func (wb *WeightedBalancer) AddEndpoint(endpoint *models.Endpoint) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.endpoints = append(wb.endpoints, endpoint)
}

func (wb *WeightedBalancer) Len() int {
	wb.mu.RLock()
	defer wb.mu.RUnlock()
	return len(wb.endpoints)
}
