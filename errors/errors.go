package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)

// Protocol errors: the datagram is dropped and never answered.
var (
	ErrMalformed    = fmt.Errorf("malformed datagram")
	ErrUnknownOrder = fmt.Errorf("unrecognized order code")
	ErrNotDirectory = fmt.Errorf("internal order from a peer other than the directory")
)

// Domain errors: answered with an explicit ERR reply.
var (
	ErrInvalidName   = fmt.Errorf("invalid name")
	ErrDuplicateName = fmt.Errorf("name already in use")
	ErrNotFound      = fmt.Errorf("group not found")
	ErrNotModerator  = fmt.Errorf("requester is not the moderator")
	ErrUnauthorized  = fmt.Errorf("only the moderator can do that")
	ErrSelfBan       = fmt.Errorf("the moderator cannot ban itself")
	ErrBanned        = fmt.Errorf("banned from this group")
	ErrNotMember     = fmt.Errorf("not a member of this group")
	ErrGroupFull     = fmt.Errorf("group is full")
	ErrBadFusion     = fmt.Errorf("fusion expects two distinct group names")
)

// Resource errors: answered, and the attempted allocation is rolled back.
var (
	ErrNoCapacity   = fmt.Errorf("no free group slot")
	ErrServerFull   = fmt.Errorf("no free user slot")
	ErrSpawnFailed  = fmt.Errorf("relay spawn failed")
	ErrBindFailed   = fmt.Errorf("cannot bind datagram port")
	ErrRelayMissing = fmt.Errorf("relay binary not found")
)

// Client errors.
var (
	ErrRejected        = fmt.Errorf("request rejected")
	ErrUnexpectedReply = fmt.Errorf("unexpected reply")
)
