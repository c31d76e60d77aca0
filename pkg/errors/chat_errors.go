package errors

var (
	ErrUnauthenticated    = Unauthorized("authentication credentials were not provided or are invalid")
	ErrNotParticipant     = Forbidden("you are not a participant of this room")
	ErrRoleCannotChat     = Forbidden("only travelers and agents can open chat rooms")
	ErrRoomNotFound       = NotFound("chat room not found")
	ErrCounterpartMissing = NotFound("counterpart user not found")
	ErrUserNotFound       = NotFound("user not found")
	ErrEmptyMessage       = InvalidArg("message text cannot be empty")
	ErrCounterpartID      = InvalidArg("counterpart id is required")
	ErrInvalidRoomID      = InvalidArg("invalid room id")
	ErrInvalidRole        = InvalidArg("invalid role")
	ErrEmailTaken         = InvalidArg("email is already registered")
	ErrPasswordTooLong    = InvalidArg("password must be at most 72 bytes")
)
