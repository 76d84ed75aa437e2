package proxy

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Uuq114/JanusBedrock/internal/models"
)

const Version = "2.0.0"

var features = []string{"chat", "health", "models"}

var endpoints = map[string]string{
	"/":       "API information",
	"/health": "Health check",
	"/models": "List available models",
	"/chat":   "POST - Chat with Claude",
}

func (p *Proxy) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Claude chat API powered by AWS Bedrock",
		"timestamp": p.timestamp(),
		"version":   Version,
		"features":  features,
		"endpoints": endpoints,
	})
}

func (p *Proxy) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": p.timestamp(),
	})
}

func (p *Proxy) HandleModels(c *gin.Context) {
	available := p.catalog.Models
	if available == nil {
		available = []models.ModelConfig{}
	}
	c.JSON(http.StatusOK, gin.H{
		"current_model":    p.catalog.Current,
		"available_models": available,
		"pricing_note":     p.catalog.PricingNote(),
	})
}
