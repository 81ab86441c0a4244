package ctxkeys

// Keys for values stored in fiber.Ctx Locals.
const (
	// TokenKey holds the parsed *jwt.Token set by the JWT middleware.
	TokenKey = "jwt"
	// UserKey holds the authenticated *auth.User.
	UserKey = "currentUser"
	// UserIDKey holds the caller id (hex) on WebSocket upgrades.
	UserIDKey = "userID"
	// ParentCtxKey holds the request context handed to WebSocket handlers.
	ParentCtxKey = "parentCtx"
	// ResourceKey holds the document loaded by CheckOwnership.
	ResourceKey = "resource"
)
