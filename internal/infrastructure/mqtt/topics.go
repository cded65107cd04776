package mqtt

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "videoroute"

// Topics builds the topic names under one prefix.
//
//	t := mqtt.Topics{Prefix: "videoroute"}
//	t.Select()        // videoroute/select
//	t.DispatchEvent() // videoroute/event/dispatch
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Select is the inbound topic for source selections.
func (t Topics) Select() string {
	return t.prefix() + "/select"
}

// DispatchEvent is where finished executions are published.
func (t Topics) DispatchEvent() string {
	return t.prefix() + "/event/dispatch"
}

// SystemStatus carries the retained online/offline status and the LWT.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// All matches every topic under the prefix.
func (t Topics) All() string {
	return t.prefix() + "/#"
}
