package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"

	"cardperks-go/internal/aggregator"
	"cardperks-go/internal/benefits"
	"cardperks-go/internal/cache"
	"cardperks-go/internal/config"
	"cardperks-go/internal/database"
	"cardperks-go/internal/ingest"
	"cardperks-go/internal/store"
	"cardperks-go/internal/tasks"
	"cardperks-go/internal/vault"
)

type Server struct {
	cfg           *config.Config
	orchestrator  *ingest.Orchestrator
	matcher       *benefits.Matcher
	limiter       *RateLimiter
	roles         *cache.RoleCache
	ruleValidator *gojsonschema.Schema
	queue         *tasks.Queue
}

func NewServer(cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors(cfg))
	r.Use(logging())

	loader := gojsonschema.NewReferenceLoader("file://./schemas/benefit_rule.schema.json")
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		panic(err)
	}

	st := store.New(database.DB)
	matcher := benefits.NewMatcher(st, cfg.ScanBatchLimit)

	queue := tasks.NewQueue(cfg.TaskQueueSize, func(ctx context.Context, task *tasks.ScanTask) error {
		_, err := matcher.ScanAndMatch(ctx, task.UserID, task.AccountID)
		return err
	})
	queue.Start(context.Background())

	orchestrator := ingest.NewOrchestrator(
		aggregator.NewHTTPClient(cfg),
		vault.NewHTTPResolver(cfg),
		st,
		queue,
		cfg.MaxSyncIterations,
		time.Duration(cfg.SyncCommitTimeout)*time.Second,
	)

	s := &Server{
		cfg:           cfg,
		orchestrator:  orchestrator,
		matcher:       matcher,
		limiter:       NewRateLimiter(cfg.SyncPerHour, time.Hour),
		roles:         cache.NewRoleCache(time.Duration(cfg.AdminCacheTTLSec) * time.Second),
		ruleValidator: schema,
		queue:         queue,
	}

	r.POST("/v1/auth/login", s.authLogin)

	authorized := r.Group("/v1")
	authorized.Use(AuthMiddleware(cfg))
	{
		authorized.POST("/items/:itemID/sync", s.syncItem)
		authorized.GET("/accounts", s.listAccounts)
		authorized.POST("/accounts/:accountID/mark-paid", s.markPaid)
		authorized.DELETE("/accounts/:accountID/mark-paid", s.unmarkPaid)
		authorized.GET("/benefits/usage", s.benefitUsage)
		authorized.POST("/benefits/scan", s.scanBenefits)

		admin := authorized.Group("")
		admin.Use(AdminMiddleware(s.roles))
		{
			admin.POST("/rules", s.createRule)
			admin.PUT("/users/:userID/role", s.setUserRole)
		}
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	return r
}
