package wire

// RequestType enumerates the client → server message types.
type RequestType uint16

const (
	RequestTypeIdentity RequestType = iota
	RequestTypeJoinGroup
	RequestTypeDirectMessage
	RequestTypeLeaveGroup
	RequestTypeFetchGroups
	RequestTypeSearchForGroup
	RequestTypeDisconnect
	RequestTypeMatchContacts
)

func (t RequestType) String() string {
	switch t {
	case RequestTypeIdentity:
		return "IDENTITY"
	case RequestTypeJoinGroup:
		return "JOIN_GROUP"
	case RequestTypeDirectMessage:
		return "DIRECT_MESSAGE"
	case RequestTypeLeaveGroup:
		return "LEAVE_GROUP"
	case RequestTypeFetchGroups:
		return "FETCH_GROUPS"
	case RequestTypeSearchForGroup:
		return "SEARCH_FOR_GROUP"
	case RequestTypeDisconnect:
		return "DISCONNECT"
	case RequestTypeMatchContacts:
		return "MATCH_CONTACTS"
	default:
		return "UNKNOWN_REQUEST"
	}
}

// ResponseType enumerates the server → client message types.
type ResponseType uint16

const (
	ResponseTypeRequestIdentity ResponseType = iota
	ResponseTypeIdentityRejection
	ResponseTypeIdentityAccepted
	ResponseTypeDisconnectionAccepted
	ResponseTypeReceiveDirectMessage
	ResponseTypeContactBatch
	ResponseTypeDeliveryState
)

func (t ResponseType) String() string {
	switch t {
	case ResponseTypeRequestIdentity:
		return "REQUEST_IDENTITY"
	case ResponseTypeIdentityRejection:
		return "IDENTITY_REJECTION"
	case ResponseTypeIdentityAccepted:
		return "IDENTITY_ACCEPTED"
	case ResponseTypeDisconnectionAccepted:
		return "DISCONNECTION_ACCEPTED"
	case ResponseTypeReceiveDirectMessage:
		return "RECEIVE_DIRECT_MESSAGE"
	case ResponseTypeContactBatch:
		return "CONTACT_BATCH"
	case ResponseTypeDeliveryState:
		return "DELIVERY_STATE"
	default:
		return "UNKNOWN_RESPONSE"
	}
}
