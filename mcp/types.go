package mcp

import (
	"os/exec"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// providerProcess tracks one running tool provider: either a local stdio
// subprocess or a remote streamable-HTTP endpoint.
type providerProcess struct {
	ID      string
	Process *exec.Cmd // nil for remote providers
	Client  *client.Client
	Tools   []mcptypes.Tool
	Running bool
	Remote  bool
	URL     string
}
