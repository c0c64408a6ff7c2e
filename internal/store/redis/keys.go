package redis

const (
	// KeyPrefix namespaces every key and channel owned by linkvault.
	KeyPrefix = "linkvault:"

	// KeyPrefixSession is the prefix for session hashes, keyed by access token
	KeyPrefixSession = KeyPrefix + "session:"
	// KeyPrefixBookmark is the prefix for bookmark row hashes, keyed by id
	KeyPrefixBookmark = KeyPrefix + "bookmark:"
	// KeyPrefixUserBookmarks is the prefix for per-owner sorted sets of bookmark ids
	KeyPrefixUserBookmarks = KeyPrefix + "bookmarks:user:"
	// KeyBookmarkSeq is the bookmark id sequence
	KeyBookmarkSeq = KeyPrefix + "bookmarks:seq"

	// ChannelPrefixChanges is the prefix for per-owner change feed channels
	ChannelPrefixChanges = KeyPrefix + "changes:"
)

// SessionKey returns the Redis key for a session
func SessionKey(token string) string {
	return KeyPrefixSession + token
}

// UserBookmarksKey returns the Redis key for the ids owned by userID
func UserBookmarksKey(userID string) string {
	return KeyPrefixUserBookmarks + userID
}

// ChangesChannel returns the pub/sub channel carrying userID's row changes
func ChangesChannel(userID string) string {
	return ChannelPrefixChanges + userID
}
