package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// ExpirySweepLockKey builds the redis key guarding the expiry sweep of an org.
func ExpirySweepLockKey(orgID uuid.UUID) string {
	return fmt.Sprintf("pharmadist:inventory:%s:expiry-sweep:lock", orgID)
}

// ProductLockKey builds the advisory lock key for batch allocation.
func ProductLockKey(orgID uuid.UUID, productID int64) string {
	return fmt.Sprintf("inventory:%s:product:%d", orgID, productID)
}

// SequenceLockKey builds the advisory lock key for document numbering.
func SequenceLockKey(orgID uuid.UUID, kind string) string {
	return fmt.Sprintf("numbering:%s:%s", orgID, kind)
}
