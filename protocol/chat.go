package protocol

// Chat commands this core reacts to. Chat traffic with any other
// command is parsed and dropped.
const (
	ChatTopic = "TOPIC"
	ChatMsg   = "MSG"
)

// ChatMessage is the decoded field list of a MsgChat frame:
// command, then command-specific arguments.
type ChatMessage struct {
	Fields []string
}

// Command returns the first field, or ""
func (c *ChatMessage) Command() string {
	if len(c.Fields) == 0 {
		return ""
	}
	return c.Fields[0]
}

// Arg returns field i+1, or ""
func (c *ChatMessage) Arg(i int) string {
	if i+1 >= len(c.Fields) {
		return ""
	}
	return c.Fields[i+1]
}

// ParseChat decodes a MsgChat payload into its NUL-separated fields
func ParseChat(p []byte) (*ChatMessage, error) {
	c := &ChatMessage{}
	off := 0
	for off < len(p) {
		field, next, err := readCString(p, off)
		if err != nil {
			// Final field may lack a terminator
			c.Fields = append(c.Fields, string(p[off:]))
			return c, nil
		}
		c.Fields = append(c.Fields, field)
		off = next
	}
	return c, nil
}

// MarshalChat encodes fields as a MsgChat payload (fixtures and tests)
func MarshalChat(fields ...string) []byte {
	var p []byte
	for _, f := range fields {
		p = appendCString(p, f)
	}
	return p
}
