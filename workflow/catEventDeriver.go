package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/regdesk/catreport_backend/config"
	"github.com/regdesk/catreport_backend/models"
)

// allowRule is one (classification, group) combination eligible for event
// derivation. A nil group matches any group of that classification.
type allowRule struct {
	classification string
	group          *string
}

func groupPtr(s string) *string { return &s }

var catEventAllowList = []allowRule{
	{models.ClassificationOrderEdge, groupPtr("Client Facing")},
	{models.ClassificationOrderEdge, groupPtr("Market Facing")},
	{models.ClassificationFlowTypeDerived, groupPtr("Routed")},
	{models.ClassificationOrderAction, nil},
}

func eventEligible(fact *models.OrderBusinessClassification) bool {
	for _, rule := range catEventAllowList {
		if rule.classification != fact.Classification {
			continue
		}
		if rule.group == nil {
			return true
		}
		if fact.Group != nil && *fact.Group == *rule.group {
			return true
		}
	}
	return false
}

// eventCodeFor selects the event code by priority: the client-facing edge
// maps to the new-order code, every other eligible combination to the
// default route code.
func eventCodeFor(fact *models.OrderBusinessClassification) string {
	if fact.Classification == models.ClassificationOrderEdge &&
		fact.Group != nil && *fact.Group == "Client Facing" {
		return models.CatEventNewOrder
	}
	return models.CatEventOrderRoute
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint")
}

// CatEventDeriver promotes allow-listed classification facts into CAT
// events, at most one event per fact. Best-effort per fact: one bad fact is
// logged and skipped, never aborting the scan.
type CatEventDeriver struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	PageSize int
}

func (d *CatEventDeriver) ProcessPending(ctx context.Context) error {
	pageSize := d.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	facts, err := models.ClassificationsWithoutEvent(ctx, d.DB, pageSize)
	if err != nil {
		return err
	}
	for _, fact := range facts {
		if !eventEligible(fact) {
			continue
		}
		if err := d.deriveOne(ctx, fact); err != nil {
			config.LogError(d.Logger, "catEventDeriver", "ProcessPending",
				"derive event", map[string]interface{}{"classification_id": fact.ID, "order_id": fact.OrderId}, err)
			continue
		}
	}
	return nil
}

func (d *CatEventDeriver) deriveOne(ctx context.Context, fact *models.OrderBusinessClassification) error {
	// Narrows the race between the scan and the write; the unique index on
	// classification_id is the real guarantee.
	exists, err := models.HasCatEvent(ctx, d.DB, fact.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	event := models.OrderCatEvent{
		ClassificationId: fact.ID,
		OrderId:          fact.OrderId,
		CatEvent:         eventCodeFor(fact),
		UniqueId:         uuid.NewString(),
	}
	if err := d.DB.WithContext(ctx).Create(&event).Error; err != nil {
		if isDuplicateKey(err) {
			// Another run derived it between check and insert.
			return nil
		}
		return err
	}
	return nil
}
