package types

// AuthToken carries the signed-in user's identity into the engine. The engine
// never renews or inspects the raw token; it only threads the ids into
// account metadata and payment memos.
type AuthToken struct {
	UserID          string
	EcosystemUserID string
	AppID           string
	Token           string
}
