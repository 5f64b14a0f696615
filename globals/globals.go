package globals

// Context keys
type ContextKey string

const (
	UserIDKey      ContextKey = "userId"
	RoleKey        ContextKey = "role"
	UsernameKey    ContextKey = "username"
	TokenIDKey     ContextKey = "tokenId"
	TokenExpiryKey ContextKey = "tokenExpiry"
)
