package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/regdesk/catreport_backend/config"
	"github.com/regdesk/catreport_backend/workflow"
)

// Poller names, also the values accepted by the manual trigger endpoint.
const (
	pollerValidation1    = "validation1"
	pollerValidation2    = "validation2"
	pollerValidation3    = "validation3"
	pollerClassification = "classification"
)

type pipelineSchedulers struct {
	pollers map[string]*workflow.Poller
}

// newPipelineSchedulers wires the four pipeline pollers. Intervals are
// env-tunable; defaults are one minute for Stage 1, five minutes for Stages
// 2/3 and ten minutes for classification + event derivation.
func newPipelineSchedulers(db *gorm.DB, logger *logrus.Logger) *pipelineSchedulers {
	pageSize := config.IntFromEnv("PIPELINE_PAGE_SIZE", 10)
	locker := config.GetRedisLock()

	stage1 := &workflow.Stage1Validator{DB: db, Logger: logger}
	stage2 := &workflow.Stage2Validator{DB: db, Logger: logger}
	stage3 := &workflow.Stage3Validator{DB: db, Logger: logger}
	classifier := &workflow.ClassificationEngine{DB: db, Logger: logger}
	deriver := &workflow.CatEventDeriver{DB: db, Logger: logger}

	interval := func(envKey string, defSeconds int) time.Duration {
		return time.Duration(config.IntFromEnv(envKey, defSeconds)) * time.Second
	}

	stageTick := func(proc workflow.BatchProcessor) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			return workflow.RunStageQueue(ctx, db, logger, proc, pageSize)
		}
	}

	pollers := map[string]*workflow.Poller{
		pollerValidation1: {
			Name:     pollerValidation1,
			Interval: interval("VALIDATION1_POLL_SECONDS", 60),
			Logger:   logger,
			Locker:   locker,
			Tick:     stageTick(stage1),
		},
		pollerValidation2: {
			Name:     pollerValidation2,
			Interval: interval("VALIDATION2_POLL_SECONDS", 300),
			Logger:   logger,
			Locker:   locker,
			Tick:     stageTick(stage2),
		},
		pollerValidation3: {
			Name:     pollerValidation3,
			Interval: interval("VALIDATION3_POLL_SECONDS", 300),
			Logger:   logger,
			Locker:   locker,
			Tick:     stageTick(stage3),
		},
		pollerClassification: {
			Name:     pollerClassification,
			Interval: interval("CLASSIFICATION_POLL_SECONDS", 600),
			Logger:   logger,
			Locker:   locker,
			Tick: func(ctx context.Context) error {
				if err := workflow.RunStageQueue(ctx, db, logger, classifier, pageSize); err != nil {
					return err
				}
				// Event derivation runs downstream of classification on the
				// same tick.
				return deriver.ProcessPending(ctx)
			},
		},
	}

	return &pipelineSchedulers{pollers: pollers}
}

func (s *pipelineSchedulers) Start(ctx context.Context) {
	for _, p := range s.pollers {
		go p.Run(ctx)
	}
}

func (s *pipelineSchedulers) Get(name string) *workflow.Poller {
	return s.pollers[name]
}
