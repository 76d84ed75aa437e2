package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Uuq114/JanusBedrock/internal/balancer"
	"github.com/Uuq114/JanusBedrock/internal/bedrock"
	"github.com/Uuq114/JanusBedrock/internal/metrics"
	"github.com/Uuq114/JanusBedrock/internal/middleware"
	"github.com/Uuq114/JanusBedrock/internal/models"
	"github.com/Uuq114/JanusBedrock/internal/request"
	"github.com/Uuq114/JanusBedrock/internal/spend"
)

// ChatClient sends one prompt to a provider endpoint.
type ChatClient interface {
	Chat(ctx context.Context, prompt string, maxTokens int) (*bedrock.Completion, error)
}

// UsageRecorder receives a record for each successful chat.
type UsageRecorder interface {
	Record(record spend.UsageRecord) bool
}

type Proxy struct {
	balancer balancer.Balancer
	clients  map[string]ChatClient
	catalog  *models.Catalog
	recorder UsageRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewProxy(b balancer.Balancer, catalog *models.Catalog, logger *zap.Logger) *Proxy {
	return &Proxy{
		balancer: b,
		clients:  make(map[string]ChatClient),
		catalog:  catalog,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterEndpoint makes a client selectable under the endpoint's name.
func (p *Proxy) RegisterEndpoint(endpoint *models.Endpoint, client ChatClient) {
	p.clients[endpoint.Name] = client
	p.balancer.AddEndpoint(endpoint)
}

// EndpointCount reports how many endpoints are selectable.
func (p *Proxy) EndpointCount() int {
	return p.balancer.Len()
}

func (p *Proxy) SetRecorder(recorder UsageRecorder) {
	p.recorder = recorder
}

func (p *Proxy) HandleChat(c *gin.Context) {
	req := request.NewChatRequest()
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
		return
	}

	endpoint := p.balancer.Next()
	if endpoint == nil {
		abort(c, http.StatusServiceUnavailable, "No available endpoints")
		return
	}
	client, exists := p.clients[endpoint.Name]
	if !exists {
		abort(c, http.StatusServiceUnavailable, "No available endpoints")
		return
	}

	start := time.Now()
	completion, err := client.Chat(c.Request.Context(), req.Message, req.MaxTokens)
	if err != nil {
		status, detail := statusFor(err)
		metrics.ObserveChat(endpoint.Name, status, time.Since(start))
		if status == http.StatusInternalServerError {
			p.logger.Error("bedrock invocation failed",
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.String("endpoint", endpoint.Name),
				zap.Error(err))
		}
		abort(c, status, detail)
		return
	}
	metrics.ObserveChat(endpoint.Name, http.StatusOK, time.Since(start))
	metrics.ObserveTokens(completion.InputTokens, completion.OutputTokens)

	current := p.catalog.CurrentModel()
	if p.recorder != nil {
		p.recorder.Record(spend.NewUsageRecord(middleware.GetRequestID(c), current, endpoint.Name,
			completion.InputTokens, completion.OutputTokens))
	}

	c.JSON(http.StatusOK, request.ChatResponse{
		Response:     completion.Text,
		Model:        p.catalog.Current,
		Timestamp:    p.timestamp(),
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
	})
}

func (p *Proxy) timestamp() string {
	return p.now().UTC().Format(time.RFC3339Nano)
}

func abort(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, request.ErrorResponse{Detail: detail})
}
