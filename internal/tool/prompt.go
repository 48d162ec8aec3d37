package tool

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/pyve/pkg/types"
)

// Prompter asks the user whether and where to bootstrap a missing tool.
type Prompter interface {
	// ConfirmBootstrap reports whether the named tool should be
	// downloaded. Declining is not an error.
	ConfirmBootstrap(tool string) (bool, error)

	// ChooseTarget picks the sandbox the binary is installed into.
	ChooseTarget() (types.SandboxTarget, error)
}

// terminalPrompter reads answers from an interactive stream.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter returns a Prompter speaking on the given streams.
func NewTerminalPrompter(in io.Reader, out io.Writer) Prompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *terminalPrompter) ConfirmBootstrap(tool string) (bool, error) {
	fmt.Fprintf(p.out, "%s was not found. Download the standalone binary now? [Y/n] ", tool)
	answer, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch answer {
	case "", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (p *terminalPrompter) ChooseTarget() (types.SandboxTarget, error) {
	fmt.Fprintf(p.out, "Install into:\n  [1] project sandbox (.pyve/bin)\n  [2] user sandbox (~/.pyve/bin)\nChoice [1]: ")
	answer, err := p.readLine()
	if err != nil {
		return "", err
	}
	if answer == "2" {
		return types.SandboxUser, nil
	}
	return types.SandboxProject, nil
}

func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

// StaticPrompter answers without asking. It backs the --auto-bootstrap and
// --bootstrap-to flags and non-interactive runs.
type StaticPrompter struct {
	Accept bool
	Target types.SandboxTarget
}

func (p StaticPrompter) ConfirmBootstrap(string) (bool, error) {
	return p.Accept, nil
}

func (p StaticPrompter) ChooseTarget() (types.SandboxTarget, error) {
	if p.Target == "" {
		return types.SandboxProject, nil
	}
	return p.Target, nil
}
