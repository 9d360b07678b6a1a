package util

import (
	"fmt"
	"time"
)

// NewConversationID builds a conversation ID that embeds the user's UUID so
// later webhook deliveries can be attributed even when the mapping record is
// unavailable.
func NewConversationID(userUUID string) string {
	return fmt.Sprintf("conv_%s_%d", userUUID, time.Now().Unix())
}
