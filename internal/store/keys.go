package store

const (
	sessionKeyPrefix   = "session:"
	lockKeyPrefix      = "lock:session:"
	processedKeyPrefix = "processed:msg:"
)

func sessionKey(contactID string) string {
	return sessionKeyPrefix + contactID
}

func lockKey(contactID string) string {
	return lockKeyPrefix + contactID
}

func processedKey(messageID string) string {
	return processedKeyPrefix + messageID
}
