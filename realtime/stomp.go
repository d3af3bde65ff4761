package realtime

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// STOMP 1.2 frame commands. Exported alongside the codec so the stub
// backend can speak the same wire format.
const (
	FrameConnect     = "CONNECT"
	FrameConnected   = "CONNECTED"
	FrameSubscribe   = "SUBSCRIBE"
	FrameUnsubscribe = "UNSUBSCRIBE"
	FrameDisconnect  = "DISCONNECT"
	FrameMessage     = "MESSAGE"
	FrameError       = "ERROR"
)

// Frame headers used by this client and the stub backend.
const (
	HeaderAcceptVersion = "accept-version"
	HeaderVersion       = "version"
	HeaderHeartBeat     = "heart-beat"
	HeaderAuthorization = "Authorization"
	HeaderID            = "id"
	HeaderDestination   = "destination"
	HeaderSubscription  = "subscription"
	HeaderMessage       = "message"
	HeaderMessageID     = "message-id"
)

// HeartbeatPayload is a bare EOL octet, the STOMP heartbeat signal.
var HeartbeatPayload = []byte("\n")

// Frame is a single STOMP frame.
type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

// NewFrame builds a bodyless frame.
func NewFrame(command string, headers map[string]string) *Frame {
	return &Frame{Command: command, Headers: headers}
}

// IsHeartbeat reports whether raw is a heartbeat rather than a frame.
func IsHeartbeat(raw []byte) bool {
	return len(bytes.TrimRight(raw, "\r\n")) == 0
}

// MarshalFrame renders a frame in STOMP 1.2 wire format. Headers are
// written in sorted key order so output is deterministic.
func MarshalFrame(f *Frame) []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	keys := make([]string, 0, len(f.Headers))
	for k := range f.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteString(escapeHeader(k))
		buf.WriteByte(':')
		buf.WriteString(escapeHeader(f.Headers[k]))
		buf.WriteByte('\n')
	}

	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// ParseFrame decodes a STOMP 1.2 frame. Callers filter heartbeats first.
func ParseFrame(raw []byte) (*Frame, error) {
	raw = bytes.TrimSuffix(raw, []byte{0})
	head, body, found := bytes.Cut(raw, []byte("\n\n"))
	if !found {
		return nil, fmt.Errorf("stomp: frame missing header terminator")
	}

	lines := strings.Split(strings.TrimRight(string(head), "\r"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, fmt.Errorf("stomp: frame missing command")
	}

	f := &Frame{
		Command: strings.TrimRight(lines[0], "\r"),
		Headers: make(map[string]string, len(lines)-1),
	}
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("stomp: malformed header %q", line)
		}
		// first occurrence of a repeated header wins, per STOMP 1.2
		key := unescapeHeader(k)
		if _, exists := f.Headers[key]; !exists {
			f.Headers[key] = unescapeHeader(v)
		}
	}
	f.Body = body
	return f, nil
}

var headerEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"\r", "\\r",
	"\n", "\\n",
	":", "\\c",
)

var headerUnescaper = strings.NewReplacer(
	"\\r", "\r",
	"\\n", "\n",
	"\\c", ":",
	"\\\\", "\\",
)

func escapeHeader(s string) string   { return headerEscaper.Replace(s) }
func unescapeHeader(s string) string { return headerUnescaper.Replace(s) }
