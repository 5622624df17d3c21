package rediskey

import "fmt"

// Shiftops keys (global convention across contexts)
const SyncPrefix = "shiftops:sync"

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSyncChannelKey returns "shiftops:sync:{channel}" for the pub/sub
// broadcast channel shared by every open dashboard context.
func BuildSyncChannelKey(channel string) string {
	return NamespaceKey(SyncPrefix, channel)
}
