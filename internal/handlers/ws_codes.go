// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room handler.
const (
	BadSubprotocolError   = 3000 // client did not offer the "uno" subprotocol
	InvalidAuthTokenError = 3001 // session token missing, invalid or expired
	InvalidRoomError      = 3003 // token names another room, or the seat is gone
	ReplacedError         = 3004 // the same player opened a newer connection
)
