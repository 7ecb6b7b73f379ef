package protocol

import "fmt"

// RequestType is the leading integer of every post-handshake message. It is
// always written as a 32-bit signed Int.
type RequestType int32

const (
	Invalid RequestType = iota
	Sync
	RpcCall
	InitRequest
	InitData
	HeartBeat
	HeartBeatReply
)

func (r RequestType) String() string {
	switch r {
	case Invalid:
		return "Invalid"
	case Sync:
		return "Sync"
	case RpcCall:
		return "RpcCall"
	case InitRequest:
		return "InitRequest"
	case InitData:
		return "InitData"
	case HeartBeat:
		return "HeartBeat"
	case HeartBeatReply:
		return "HeartBeatReply"
	default:
		return fmt.Sprintf("RequestType(%d)", int32(r))
	}
}
