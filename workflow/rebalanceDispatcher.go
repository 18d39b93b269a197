package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RebalanceDispatcher drains the rebalance request queue. Stock corrections
// enqueue rows; each claimed row runs one rebalance inside its own
// transaction. Multiple dispatcher instances may run at once: claiming uses
// SKIP LOCKED and stale PROCESSING rows are reclaimed after LockTimeout.
type RebalanceDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewRebalanceDispatcher(db *gorm.DB, logger *logrus.Logger) *RebalanceDispatcher {
	return &RebalanceDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      20,
		PollInterval:   time.Second,
		LockTimeout:    60 * time.Second,
		MaxAttempts:    10,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *RebalanceDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.heartbeat(ctx)
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// heartbeat leaves a short-lived liveness key in redis so operators can see
// which dispatcher instances are polling.
func (d *RebalanceDispatcher) heartbeat(ctx context.Context) {
	rdb := config.GetRedisDB()
	if rdb == nil {
		return
	}
	_ = rdb.Set(ctx, "rebalance_dispatcher:"+d.DispatcherID,
		time.Now().UTC().Format(time.RFC3339), 3*d.PollInterval).Err()
}

// claimEligible mirrors the claim query's predicate: PENDING and FAILED rows
// whose retry delay has elapsed, plus PROCESSING rows whose lock went stale.
func claimEligible(req *models.RebalanceRequest, now, staleBefore time.Time) bool {
	switch req.Status {
	case models.RebalanceStatusPending, models.RebalanceStatusFailed:
		return req.NextAttemptAt == nil || !req.NextAttemptAt.After(now)
	case models.RebalanceStatusProcessing:
		return req.LockedAt != nil && !req.LockedAt.After(staleBefore)
	default:
		return false
	}
}

// attemptsExhausted reports whether a row has burned through its retry
// budget. A non-positive cap means unlimited retries.
func attemptsExhausted(maxAttempts, attempts int) bool {
	return maxAttempts > 0 && attempts >= maxAttempts
}

// retryBackoff doubles the delay per prior attempt, capped at ten minutes.
func retryBackoff(initial time.Duration, attempts int) time.Duration {
	backoff := initial
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if backoff > time.Minute*10 {
			return time.Minute * 10
		}
	}
	return backoff
}

func (d *RebalanceDispatcher) dispatchOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	db := d.DB
	if db == nil {
		return
	}

	var claimed []models.RebalanceRequest
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING but lock is stale (dispatcher crashed mid-run)
		q := tx.
			Where(`
				(
					status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.RebalanceStatusPending, models.RebalanceStatusFailed}, now, models.RebalanceStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			if !claimEligible(&claimed[i], now, staleBefore) {
				continue
			}
			// Poison rows go terminal.
			if attemptsExhausted(d.MaxAttempts, claimed[i].Attempts) {
				msg := fmt.Sprintf("max rebalance attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].Status = models.RebalanceStatusDead
				if err := tx.Model(&models.RebalanceRequest{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"status":          models.RebalanceStatusDead,
					"last_error":      &msg,
					"next_attempt_at": nil,
					"locked_at":       nil,
					"locked_by":       nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].Status = models.RebalanceStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].Attempts = claimed[i].Attempts + 1
			claimed[i].LastError = nil
			if err := tx.Model(&models.RebalanceRequest{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"status":          claimed[i].Status,
				"locked_at":       claimed[i].LockedAt,
				"locked_by":       claimed[i].LockedBy,
				"attempts":        gorm.Expr("attempts + 1"),
				"last_error":      nil,
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, req := range claimed {
		// Only rows this pass actually claimed run; DEAD rows and rows that
		// lost eligibility between the query and the re-check stay put.
		if req.Status != models.RebalanceStatusProcessing {
			continue
		}
		if runErr := d.runOne(ctx, req); runErr != nil {
			d.markFailed(ctx, req, runErr)
			continue
		}
		d.markDone(ctx, req, now)
	}
}

// runOne executes one rebalance inside its own transaction and announces the
// result so order promising can re-evaluate affected lines.
func (d *RebalanceDispatcher) runOne(ctx context.Context, req models.RebalanceRequest) error {
	ctx = utils.SetCorrelationIdInContext(ctx, req.CorrelationId)
	ctx = utils.SetRequestedByInContext(ctx, "rebalance-dispatcher")

	var priorityLine *OrderLine
	if req.PriorityOrderId != nil && req.PriorityOrderItemSeqId != nil && req.PriorityShipGroupSeqId != nil {
		priorityLine = &OrderLine{
			OrderId:        *req.PriorityOrderId,
			OrderItemSeqId: *req.PriorityOrderItemSeqId,
			ShipGroupSeqId: *req.PriorityShipGroupSeqId,
		}
	}

	var scope *LotScope
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		// Lock-free read; RebalanceInventory takes the reservation lock
		// before any row lock, and nothing here may lock rows earlier.
		scope, err = NewGormStore(tx, req.BusinessId).ItemScope(req.InventoryItemId)
		if err != nil {
			return err
		}
		return RebalanceInventory(ctx, tx, d.Logger, req.BusinessId, req.InventoryItemId, priorityLine)
	})
	if err != nil {
		return err
	}

	if scope != nil {
		_, pubErr := config.PublishVariance(ctx, config.VarianceMessage{
			BusinessId:      req.BusinessId,
			InventoryItemId: req.InventoryItemId,
			ProductId:       scope.ProductId,
			FacilityId:      scope.FacilityId,
			AvailableDelta:  decimal.Zero,
			Action:          "rebalanced",
			OccurredAt:      time.Now().UTC(),
			CorrelationId:   req.CorrelationId,
		})
		if pubErr != nil && d.Logger != nil {
			// Rebalance committed; the announcement is best-effort.
			d.Logger.WithFields(logrus.Fields{
				"field":          "RebalanceDispatcher",
				"business_id":    req.BusinessId,
				"request_id":     req.ID,
				"correlation_id": req.CorrelationId,
			}).Error("failed to publish rebalance variance: " + fmt.Sprintf("%v", pubErr))
		}
	}
	return nil
}

func (d *RebalanceDispatcher) markDone(ctx context.Context, req models.RebalanceRequest, now time.Time) {
	db := d.DB.WithContext(ctx)
	_ = db.Model(&models.RebalanceRequest{}).
		Where("id = ?", req.ID).
		Updates(map[string]interface{}{
			"status":          models.RebalanceStatusDone,
			"processed_at":    &now,
			"locked_at":       nil,
			"locked_by":       nil,
			"next_attempt_at": nil,
		}).Error
}

func (d *RebalanceDispatcher) markFailed(ctx context.Context, req models.RebalanceRequest, err error) {
	db := d.DB.WithContext(ctx)
	now := time.Now().UTC()
	msg := err.Error()

	if attemptsExhausted(d.MaxAttempts, req.Attempts) {
		_ = db.Model(&models.RebalanceRequest{}).
			Where("id = ?", req.ID).
			Updates(map[string]interface{}{
				"status":          models.RebalanceStatusDead,
				"last_error":      &msg,
				"next_attempt_at": nil,
				"locked_at":       nil,
				"locked_by":       nil,
			}).Error

		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":          "RebalanceDispatcher",
				"business_id":    req.BusinessId,
				"request_id":     req.ID,
				"attempt":        req.Attempts,
				"correlation_id": req.CorrelationId,
				"error_kind":     utils.KindOf(err).String(),
			}).Error("rebalance moved to DEAD after max attempts: " + fmt.Sprintf("%v", err))
		}
		return
	}

	next := now.Add(retryBackoff(d.InitialBackoff, req.Attempts))
	_ = db.Model(&models.RebalanceRequest{}).
		Where("id = ?", req.ID).
		Updates(map[string]interface{}{
			"status":          models.RebalanceStatusFailed,
			"last_error":      &msg,
			"next_attempt_at": &next,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "RebalanceDispatcher",
			"business_id":     req.BusinessId,
			"request_id":      req.ID,
			"attempt":         req.Attempts,
			"next_attempt_at": next.Format(time.RFC3339Nano),
			"correlation_id":  req.CorrelationId,
			"error_kind":      utils.KindOf(err).String(),
		}).Error("rebalance failed: " + fmt.Sprintf("%v", err))
	}
}

// EnqueueRebalance records that an item needs rebalancing. Callers invoke it
// in the same transaction as the stock correction that pushed availability
// negative.
func EnqueueRebalance(tx *gorm.DB, businessId string, itemId int, priorityLine *OrderLine, correlationId string) error {
	req := models.RebalanceRequest{
		BusinessId:      businessId,
		InventoryItemId: itemId,
		Status:          models.RebalanceStatusPending,
		CorrelationId:   correlationId,
	}
	if priorityLine != nil {
		req.PriorityOrderId = &priorityLine.OrderId
		req.PriorityOrderItemSeqId = &priorityLine.OrderItemSeqId
		req.PriorityShipGroupSeqId = &priorityLine.ShipGroupSeqId
	}
	return tx.Create(&req).Error
}
