package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/workflow"
)

// Long-running service draining the rebalance request queue. Safe to run in
// multiple replicas: the dispatcher claims rows with SKIP LOCKED.
func main() {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()

	if os.Getenv("AUTO_MIGRATE") == "true" {
		models.MigrateTable()
	}

	logger := config.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Warm up the variance topic so the first publish does not pay for
	// client init and topic creation.
	if topic := os.Getenv("PUBSUB_VARIANCE_TOPIC"); topic != "" {
		client, err := config.GetClient(ctx)
		if err != nil {
			logger.WithField("topic", topic).Warn("pubsub client unavailable: " + err.Error())
		} else if _, err := config.CreateTopicIfNotExists(client, topic); err != nil {
			logger.WithField("topic", topic).Warn("variance topic not ready: " + err.Error())
		}
	}

	dispatcher := workflow.NewRebalanceDispatcher(db, logger)

	logger.WithField("dispatcher_id", dispatcher.DispatcherID).Info("rebalance dispatcher starting")
	dispatcher.Run(ctx)
	logger.Info("rebalance dispatcher stopped")
}
