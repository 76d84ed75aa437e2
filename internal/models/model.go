package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultCurrentModel = "claude-3-haiku"

type ModelConfig struct {
	Key         string  `yaml:"key" json:"-"`                   // 对外模型标识, 如 claude-3-haiku
	Name        string  `yaml:"name" json:"name"`               // 展示名称
	ID          string  `yaml:"id" json:"id"`                   // Bedrock model id
	Description string  `yaml:"description" json:"description"` // 模型描述
	UseCase     string  `yaml:"use_case" json:"use_case"`       // 适用场景
	InputPrice  float64 `yaml:"input_price" json:"-"`           // 每1K输入token价格 (USD)
	OutputPrice float64 `yaml:"output_price" json:"-"`          // 每1K输出token价格 (USD)
}

// Endpoint 一个 Bedrock runtime 接入点 (通常对应一个region)
type Endpoint struct {
	Name    string `yaml:"name"`     // 接入点名称, 默认为region
	Region  string `yaml:"region"`   // AWS region
	BaseURL string `yaml:"base_url"` // 可选, 覆盖默认的 bedrock-runtime 地址
	Weight  int    `yaml:"weight"`   // 负载均衡权重
}

type Catalog struct {
	Current string        `yaml:"current"`
	Models  []ModelConfig `yaml:"models"`
}

func DefaultCatalog() Catalog {
	return Catalog{
		Current: DefaultCurrentModel,
		Models: []ModelConfig{
			{
				Key:         "claude-3-haiku",
				Name:        "Claude 3 Haiku",
				ID:          "anthropic.claude-3-haiku-20240307-v1:0",
				Description: "Fastest and most compact Claude 3 model",
				UseCase:     "Quick responses, simple tasks, high volume chat",
				InputPrice:  0.00025,
				OutputPrice: 0.00125,
			},
			{
				Key:         "claude-3-sonnet",
				Name:        "Claude 3 Sonnet",
				ID:          "anthropic.claude-3-sonnet-20240229-v1:0",
				Description: "Balanced intelligence and speed",
				UseCase:     "General purpose assistants, data processing",
				InputPrice:  0.003,
				OutputPrice: 0.015,
			},
			{
				Key:         "claude-3-5-sonnet",
				Name:        "Claude 3.5 Sonnet",
				ID:          "anthropic.claude-3-5-sonnet-20240620-v1:0",
				Description: "Most capable model of the family",
				UseCase:     "Complex reasoning, coding, long-form analysis",
				InputPrice:  0.003,
				OutputPrice: 0.015,
			},
		},
	}
}

// Lookup finds a model by key or Bedrock id.
func (c *Catalog) Lookup(name string) (*ModelConfig, bool) {
	for i := range c.Models {
		m := &c.Models[i]
		if m.Key == name || m.ID == name || strings.EqualFold(m.Key, name) {
			return m, true
		}
	}
	return nil, false
}

func (c *Catalog) CurrentModel() *ModelConfig {
	m, _ := c.Lookup(c.Current)
	return m
}

// PricingNote describes the per-token price of the current model.
func (c *Catalog) PricingNote() string {
	m := c.CurrentModel()
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%s: $%s per 1K input tokens, $%s per 1K output tokens",
		m.Name,
		decimal.NewFromFloat(m.InputPrice).String(),
		decimal.NewFromFloat(m.OutputPrice).String(),
	)
}
