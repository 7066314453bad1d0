package redis

var (
	EncodeSession = encodeSession
	DecodeSession = decodeSession
	TTLUntil      = ttlUntil
)
