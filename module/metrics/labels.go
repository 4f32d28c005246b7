package metrics

const (
	EngineLabel   = "engine"
	LabelResource = "resource"
	LabelMessage  = "message"
	LabelTier     = "tier"
	LabelEvent    = "event"
)

const (
	EngineSynchronization = "sync"
)

const (
	ResourceHeader        = "header"
	ResourceBlock         = "block"
	ResourceJustification = "justification"
	ResourceFinalized     = "finalized_index"
)

const (
	MessageStateBroadcast         = "state_broadcast"
	MessageStateBroadcastResponse = "state_broadcast_response"
	MessageRequest                = "request"
	MessageRequestResponse        = "request_response"
	MessageChainEvent             = "chain_event"
	MessageJustificationSubmitted = "justification_submitted"
	MessageInternalRequest        = "internal_request"
)
