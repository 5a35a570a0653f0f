package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/regdesk/catreport_backend/config"
	"github.com/regdesk/catreport_backend/models"
	"github.com/regdesk/catreport_backend/utils"
)

const defaultPort = "8080"

var schedulers *pipelineSchedulers

type NewOrderRecord struct {
	OrderId              string            `json:"order_id" binding:"required"`
	Symbol               string            `json:"symbol"`
	Side                 string            `json:"side"`
	OrderType            string            `json:"order_type"`
	Price                *decimal.Decimal  `json:"price"`
	Quantity             decimal.Decimal   `json:"quantity"`
	Capacity             string            `json:"capacity"`
	ActionType           string            `json:"action_type"`
	SourceSystem         string            `json:"source_system"`
	OriginationSystem    string            `json:"origination_system"`
	Destination          string            `json:"destination"`
	LinkedOrderType      string            `json:"linked_order_type"`
	InfoBarrierId        string            `json:"info_barrier_id"`
	BidPrice             *decimal.Decimal  `json:"bid_price"`
	AskPrice             *decimal.Decimal  `json:"ask_price"`
	TimeInForce          string            `json:"time_in_force"`
	AccountHolderType    string            `json:"account_holder_type"`
	SenderIMID           string            `json:"sender_imid"`
	ReceiverIMID         string            `json:"receiver_imid"`
	RoutedOrderId        string            `json:"routed_order_id"`
	FirmDesignatedId     string            `json:"firm_designated_id"`
	SessionId            string            `json:"session_id"`
	HandlingInstructions string            `json:"handling_instructions"`
	EventTimestamp       *time.Time        `json:"event_timestamp"`
	ExtraFields          map[string]string `json:"extra_fields"`
}

type NewExecutionRecord struct {
	ExecutionId      string            `json:"execution_id" binding:"required"`
	OrderId          string            `json:"order_id"`
	Symbol           string            `json:"symbol"`
	Side             string            `json:"side"`
	Capacity         string            `json:"capacity"`
	Price            *decimal.Decimal  `json:"price"`
	Quantity         decimal.Decimal   `json:"quantity"`
	TradeVenue       string            `json:"trade_venue"`
	SenderIMID       string            `json:"sender_imid"`
	FirmDesignatedId string            `json:"firm_designated_id"`
	SessionId        string            `json:"session_id"`
	EventTimestamp   *time.Time        `json:"event_timestamp"`
	ExtraFields      map[string]string `json:"extra_fields"`
}

type NewBatchInput struct {
	FirmId     string               `json:"firm_id" binding:"required"`
	UserId     int                  `json:"user_id"`
	FileType   models.FileType      `json:"file_type" binding:"required,oneof=orders execution"`
	FileName   string               `json:"file_name"`
	Orders     []NewOrderRecord     `json:"orders" binding:"omitempty,dive"`
	Executions []NewExecutionRecord `json:"executions" binding:"omitempty,dive"`
}

// ingestBatchHandler accepts one upload unit as JSON rows. Parsing of the
// original spreadsheet happens upstream; by the time records arrive here
// they are already a flat field map per the upload vocabulary.
func ingestBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input NewBatchInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if input.FileType == models.FileTypeOrders && len(input.Orders) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "orders batch must contain at least one order record"})
			return
		}
		if input.FileType == models.FileTypeExecution && len(input.Executions) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "execution batch must contain at least one execution record"})
			return
		}

		if input.UserId == 0 {
			if userId, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
				input.UserId = userId
			}
		}

		db := config.GetDB()
		batch := models.Batch{
			FirmId:   input.FirmId,
			UserId:   input.UserId,
			FileType: input.FileType,
			FileName: input.FileName,
		}
		if input.FileType == models.FileTypeOrders {
			batch.TotalRecords = len(input.Orders)
		} else {
			batch.TotalRecords = len(input.Executions)
		}

		err := db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&batch).Error; err != nil {
				return err
			}
			for i, rec := range input.Orders {
				order := models.Order{
					BatchId:              batch.ID,
					RecordIndex:          i,
					OrderId:              rec.OrderId,
					Symbol:               rec.Symbol,
					Side:                 rec.Side,
					OrderType:            rec.OrderType,
					Price:                rec.Price,
					Quantity:             rec.Quantity,
					Capacity:             rec.Capacity,
					ActionType:           rec.ActionType,
					SourceSystem:         rec.SourceSystem,
					OriginationSystem:    rec.OriginationSystem,
					Destination:          rec.Destination,
					LinkedOrderType:      rec.LinkedOrderType,
					InfoBarrierId:        rec.InfoBarrierId,
					BidPrice:             rec.BidPrice,
					AskPrice:             rec.AskPrice,
					TimeInForce:          rec.TimeInForce,
					AccountHolderType:    rec.AccountHolderType,
					SenderIMID:           rec.SenderIMID,
					ReceiverIMID:         rec.ReceiverIMID,
					RoutedOrderId:        rec.RoutedOrderId,
					FirmDesignatedId:     rec.FirmDesignatedId,
					SessionId:            rec.SessionId,
					HandlingInstructions: rec.HandlingInstructions,
					EventTimestamp:       rec.EventTimestamp,
					ExtraFields:          rec.ExtraFields,
				}
				if err := tx.Create(&order).Error; err != nil {
					return err
				}
			}
			for i, rec := range input.Executions {
				execution := models.Execution{
					BatchId:          batch.ID,
					RecordIndex:      i,
					ExecutionId:      rec.ExecutionId,
					OrderId:          rec.OrderId,
					Symbol:           rec.Symbol,
					Side:             rec.Side,
					Capacity:         rec.Capacity,
					Price:            rec.Price,
					Quantity:         rec.Quantity,
					TradeVenue:       rec.TradeVenue,
					SenderIMID:       rec.SenderIMID,
					FirmDesignatedId: rec.FirmDesignatedId,
					SessionId:        rec.SessionId,
					EventTimestamp:   rec.EventTimestamp,
					ExtraFields:      rec.ExtraFields,
				}
				if err := tx.Create(&execution).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "ingestBatchHandler", "create batch", input.FirmId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create batch"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"id": batch.ID, "total_records": batch.TotalRecords})
	}
}

func getBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
			return
		}
		batch, err := models.GetBatch(c.Request.Context(), config.GetDB(), id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batch"})
			return
		}
		c.JSON(http.StatusOK, batch)
	}
}

func batchClassificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
			return
		}
		db := config.GetDB()
		batch, err := models.GetBatch(c.Request.Context(), db, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batch"})
			return
		}
		if batch.FileType == models.FileTypeOrders {
			facts, err := models.OrderClassificationsForBatch(c.Request.Context(), db, batch.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load classifications"})
				return
			}
			c.JSON(http.StatusOK, facts)
			return
		}
		facts, err := models.ExecutionClassificationsForBatch(c.Request.Context(), db, batch.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load classifications"})
			return
		}
		c.JSON(http.StatusOK, facts)
	}
}

func orderCatEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		events, err := models.CatEventsForOrder(c.Request.Context(), config.GetDB(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load events"})
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

// updateValidationSchemaHandler is the out-of-band configuration refresh.
// Every accepted update appends a ValidationSchemaHistory row.
func updateValidationSchemaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		firmId := c.Param("firmId")
		fileType := models.FileType(c.Query("file_type"))
		if !fileType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file_type must be orders or execution"})
			return
		}
		var input models.NewValidationSchema
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if input.UpdatedBy == "" {
			if userName, ok := utils.GetUserNameFromContext(c.Request.Context()); ok {
				input.UpdatedBy = userName
			}
		}
		schema, err := models.UpsertValidationSchema(c.Request.Context(), config.GetDB(), firmId, fileType, &input)
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "updateValidationSchemaHandler", "upsert schema", firmId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update schema"})
			return
		}
		c.JSON(http.StatusOK, schema)
	}
}

// runStageQueueHandler is the manual "run this stage's queue now" trigger.
// It shares the single-flight guard and lease with the scheduled tick, so a
// trigger that lands mid-tick is dropped the same way an overlapping tick is.
func runStageQueueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if schedulers == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline not ready"})
			return
		}
		poller := schedulers.Get(c.Param("stage"))
		if poller == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown stage"})
			return
		}
		ran := poller.RunOnce(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"stage": poller.Name, "triggered": ran})
	}
}

// requestContext stamps actor and correlation values from headers onto the
// request context. The correlation id is generated when the caller does not
// supply one and echoed back on the response.
func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		correlationId := strings.TrimSpace(c.GetHeader("X-Correlation-ID"))
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
		c.Header("X-Correlation-ID", correlationId)

		if userName := strings.TrimSpace(c.GetHeader("X-User-Name")); userName != "" {
			ctx = utils.SetUserNameInContext(ctx, userName)
		}
		if userId, err := strconv.Atoi(strings.TrimSpace(c.GetHeader("X-User-ID"))); err == nil {
			ctx = utils.SetUserIdInContext(ctx, userId)
		}
		if firmId := strings.TrimSpace(c.GetHeader("X-Firm-ID")); firmId != "" {
			ctx = utils.SetFirmIdInContext(ctx, firmId)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			correlationId, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"path":           c.Request.URL.Path,
				"correlation_id": correlationId,
			}).Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validRuleKind backs the "rulekind" binding tag on cross-field rules.
func validRuleKind(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.RuleKindRequiredIf, models.RuleKindForbiddenIf, models.RuleKindEqualsIf:
		return true
	}
	return false
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	logger := config.GetLogger()

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("rulekind", validRuleKind)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate everything else on dependency readiness.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization")
	r.Use(cors.New(corsConfig))
	r.Use(requestContext())
	r.Use(customErrorLogger(logger))

	r.POST("/batches", ingestBatchHandler())
	r.GET("/batches/:id", getBatchHandler())
	r.GET("/batches/:id/classifications", batchClassificationsHandler())
	r.GET("/orders/:id/cat-events", orderCatEventsHandler())
	r.PUT("/internal/firms/:firmId/validation-schema", updateValidationSchemaHandler())
	r.POST("/internal/pipeline/run/:stage", runStageQueueHandler())

	// Start listening immediately; dependencies connect afterwards.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Stage guards read the previous stage's committed status; READ COMMITTED
	// is what makes "cannot become eligible before the write commits" hold.
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	schedulerCtx, cancelSchedulers := context.WithCancel(context.Background())
	defer cancelSchedulers()
	schedulers = newPipelineSchedulers(db, logger)
	schedulers.Start(schedulerCtx)

	logger.WithFields(logrus.Fields{
		"port": port,
	}).Info("pipeline backend started")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the pollers first so no new page starts while draining.
	cancelSchedulers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
