package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/badmintontv/badmintontv/app/repository"
	"github.com/badmintontv/badmintontv/internal/pkg/billing"
	"github.com/badmintontv/badmintontv/internal/pkg/database"
	"github.com/badmintontv/badmintontv/internal/pkg/gateway"
)

// processUserBulkDeleteJob deletes a batch of users. Users with an active
// subscription are cancelled at the payment provider first so no further
// invoices are generated for an account that no longer exists.
func (q *Queue) processUserBulkDeleteJob(ctx context.Context, job *Job) error {
	payload, err := UserBulkDeleteJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid user bulk delete payload: %w", err)
	}

	repos := repository.GetGlobalRepositories()
	svc := billing.NewServiceFromDB(database.GetDB(), gateway.NewStripeGatewayFromEnv())

	deleted := 0
	for _, id := range payload.UserIDs {
		user, err := repos.User.GetByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warnf("[JobQueue] User %d already gone, skipping", id)
				continue
			}
			return fmt.Errorf("failed to load user %d: %w", id, err)
		}

		subscribed, err := repos.User.HasSubscription(user.ID)
		if err != nil {
			return fmt.Errorf("failed to check subscription for user %d: %w", id, err)
		}
		if subscribed {
			if err := svc.Cancel(ctx, user); err != nil {
				return fmt.Errorf("failed to cancel subscription for user %d: %w", id, err)
			}
			log.Infof("[JobQueue] Cancelled subscription for user %d before delete", id)
		}

		if err := repos.User.Delete(user.ID); err != nil {
			return fmt.Errorf("failed to delete user %d: %w", id, err)
		}
		deleted++
	}

	log.Infof("[JobQueue] Bulk delete finished, %d of %d users deleted", deleted, len(payload.UserIDs))
	return nil
}
