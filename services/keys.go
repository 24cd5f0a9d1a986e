package services

import (
	"fmt"
	"strings"
)

// All waiting-room state is namespaced under wait:<kind>:<scope> so
// independent queues (e.g. "show1:sched1" vs "show1:sched2") never
// touch each other's keys.

func lineKey(scope string) string {
	return fmt.Sprintf("wait:line:%s", scope)
}

func seqKey(scope string) string {
	return fmt.Sprintf("wait:seq:%s", scope)
}

func presenceKey(scope string) string {
	return fmt.Sprintf("wait:presence:%s", scope)
}

func ghostKey(scope string) string {
	return fmt.Sprintf("wait:ghost:%s", scope)
}

func ticketKey(scope, memberID string) string {
	return fmt.Sprintf("wait:ticket:%s:%s", scope, memberID)
}

func activeKey(scope string) string {
	return fmt.Sprintf("wait:active:%s", scope)
}

func lockKey(scope string) string {
	return fmt.Sprintf("wait:lock:%s", scope)
}

func metricKey(scope string) string {
	return fmt.Sprintf("wait:metric:%s", scope)
}

func pausedKey(scope string) string {
	return fmt.Sprintf("wait:paused:%s", scope)
}

func eventSeqKey(scope string) string {
	return fmt.Sprintf("wait:evseq:%s", scope)
}

// scopeFromLineKey recovers the scope id from a wait:line:* key; used by
// the dashboard and the metrics collector when scanning all queues.
func scopeFromLineKey(key string) string {
	return strings.TrimPrefix(key, "wait:line:")
}

// PubNub channel names cannot contain colons, so scope ids are flattened
// with dots for channel naming only.
func publicChannel(scope string) string {
	return "queue-" + strings.ReplaceAll(scope, ":", ".")
}

func memberChannel(scope, memberID string) string {
	return "member-" + strings.ReplaceAll(scope, ":", ".") + "-" + memberID
}
