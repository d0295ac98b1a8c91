package model

// FragmentKind discriminates the units of an in-progress chat response as
// produced by the chat adapter and consumed by the stream relay.
type FragmentKind int

const (
	// FragmentText is an incremental text delta.
	FragmentText FragmentKind = iota
	// FragmentToolNotice names a tool whose invocation resolved; it
	// immediately precedes the matching FragmentToolResult.
	FragmentToolNotice
	// FragmentToolResult carries the formatted result of a resolved tool call.
	FragmentToolResult
	// FragmentDone terminates a successful sequence and carries the full
	// assembled response text.
	FragmentDone
	// FragmentError terminates a failed sequence with a human-readable
	// message. No fragments follow it.
	FragmentError
)

// Fragment is one unit of adapter output. The sequence is lazy and
// single-pass: consumers drain it exactly once, in order, and it always ends
// with exactly one FragmentDone or FragmentError.
type Fragment struct {
	Kind     FragmentKind
	Text     string // delta, tool result, full text (Done), or message (Error)
	ToolName string // set for ToolNotice and ToolResult
}

// Terminal reports whether no fragments may follow this one.
func (f Fragment) Terminal() bool {
	return f.Kind == FragmentDone || f.Kind == FragmentError
}
