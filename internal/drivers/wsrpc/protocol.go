package wsrpc

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// RPCVersion is the protocol revision this client speaks.
const RPCVersion = 1

// OpCode identifies a message.
type OpCode int

// Op codes used by the client.
const (
	OpHello           OpCode = 0
	OpIdentify        OpCode = 1
	OpIdentified      OpCode = 2
	OpEvent           OpCode = 5
	OpRequest         OpCode = 6
	OpRequestResponse OpCode = 7
)

// Message is the envelope of every frame.
type Message struct {
	Op OpCode          `json:"op"`
	D  json.RawMessage `json:"d"`
}

// Hello is sent by the server on connect.
type Hello struct {
	ServerVersion  string     `json:"obsWebSocketVersion,omitempty"`
	RPCVersion     int        `json:"rpcVersion"`
	Authentication *AuthChall `json:"authentication,omitempty"`
}

// AuthChall carries the authentication challenge.
type AuthChall struct {
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
}

// Identify answers Hello.
type Identify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

// Identified confirms the session.
type Identified struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

// Request asks the server to perform one request type.
type Request struct {
	RequestType string         `json:"requestType"`
	RequestID   string         `json:"requestId"`
	RequestData map[string]any `json:"requestData,omitempty"`
}

// RequestStatus reports the outcome of a Request.
type RequestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

// RequestResponse answers a Request.
type RequestResponse struct {
	RequestType   string         `json:"requestType"`
	RequestID     string         `json:"requestId"`
	RequestStatus RequestStatus  `json:"requestStatus"`
	ResponseData  map[string]any `json:"responseData,omitempty"`
}

// AuthResponse computes the Identify authentication string:
// base64(sha256(base64(sha256(password + salt)) + challenge)).
func AuthResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

func envelope(op OpCode, d any) (Message, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return Message{}, err
	}
	return Message{Op: op, D: raw}, nil
}
