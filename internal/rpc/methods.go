package rpc

import "time"

// Method describes one protocol method: its name plus the publish parameters
// the interactor applies to its request and response payloads.
type Method struct {
	Name        string
	RequestTag  int
	ResponseTag int
	TTL         time.Duration
	Prompt      bool

	// AllowPlaintext marks the small set of bootstrap methods that may travel
	// unencrypted before a topic has an agreement secret.
	AllowPlaintext bool
}

var (
	PairingDelete = Method{Name: "wc_pairingDelete", RequestTag: 1000, ResponseTag: 1001, TTL: 24 * time.Hour}
	PairingPing   = Method{Name: "wc_pairingPing", RequestTag: 1002, ResponseTag: 1003, TTL: 30 * time.Second}

	SessionPropose = Method{Name: "wc_sessionPropose", RequestTag: 1100, ResponseTag: 1101, TTL: 5 * time.Minute, Prompt: true}
	SessionSettle  = Method{Name: "wc_sessionSettle", RequestTag: 1102, ResponseTag: 1103, TTL: 5 * time.Minute}
	SessionUpdate  = Method{Name: "wc_sessionUpdate", RequestTag: 1104, ResponseTag: 1105, TTL: 24 * time.Hour}
	SessionExtend  = Method{Name: "wc_sessionExtend", RequestTag: 1106, ResponseTag: 1107, TTL: 24 * time.Hour}
	SessionRequest = Method{Name: "wc_sessionRequest", RequestTag: 1108, ResponseTag: 1109, TTL: 5 * time.Minute, Prompt: true}
	SessionEvent   = Method{Name: "wc_sessionEvent", RequestTag: 1110, ResponseTag: 1111, TTL: 5 * time.Minute, Prompt: true}
	SessionDelete  = Method{Name: "wc_sessionDelete", RequestTag: 1112, ResponseTag: 1113, TTL: 24 * time.Hour}
	SessionPing    = Method{Name: "wc_sessionPing", RequestTag: 1114, ResponseTag: 1115, TTL: 30 * time.Second}

	AuthRequest = Method{Name: "wc_authRequest", RequestTag: 3000, ResponseTag: 3001, TTL: time.Hour, Prompt: true}
)

var registry = map[string]Method{}

func init() {
	for _, m := range []Method{
		PairingDelete, PairingPing,
		SessionPropose, SessionSettle, SessionUpdate, SessionExtend,
		SessionRequest, SessionEvent, SessionDelete, SessionPing,
		AuthRequest,
	} {
		registry[m.Name] = m
	}
}

// MethodByName looks up a registered protocol method.
func MethodByName(name string) (Method, bool) {
	m, ok := registry[name]
	return m, ok
}
