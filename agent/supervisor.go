package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

// MergeMode selects how a sub-agent's output is folded into the
// supervisor's log.
type MergeMode string

const (
	// MergeFinalOnly appends a single tool message carrying the sub-agent's
	// final answer.
	MergeFinalOnly MergeMode = "final-only"
	// MergeFullHistory appends every message the sub-agent produced. The
	// final one answers the supervisor's call; the rest follow the tool
	// results of the turn, attributed to the sub-agent.
	MergeFullHistory MergeMode = "full-history"
)

// ParseMergeMode parses a merge mode. The empty string is rejected.
func ParseMergeMode(s string) (MergeMode, error) {
	switch m := MergeMode(strings.ToLower(strings.TrimSpace(s))); m {
	case MergeFinalOnly, MergeFullHistory:
		return m, nil
	case "":
		return "", errors.New("merge mode is required (final-only or full-history)")
	default:
		return "", fmt.Errorf("unknown merge mode %q (final-only or full-history)", s)
	}
}

// ContextFilter derives the log handed to a sub-agent from the supervisor's
// log as of the delegating call. The delegating assistant message is not
// part of the input. The returned log must satisfy core.Log.Validate.
type ContextFilter func(master core.Log) core.Log

// ConversationOnly keeps user messages and final assistant replies, hiding
// tool traffic from sub-agents.
func ConversationOnly(master core.Log) core.Log {
	return master.Filter(func(m core.Message) bool {
		return m.Role == core.RoleUser || (m.IsFinal() && m.Content != "")
	})
}

// FullContext passes the supervisor's log through unchanged.
func FullContext(master core.Log) core.Log {
	return master.Clone()
}

// SupervisorOptions configures a Supervisor.
//
// ModelAgentOptions.ToolTimeout bounds a whole sub-agent run and defaults to
// zero, which disables it.
type SupervisorOptions struct {
	ModelAgentOptions

	// MergeMode is required.
	MergeMode MergeMode
	// ContextFilter defaults to ConversationOnly.
	ContextFilter ContextFilter
}

// Supervisor is a ModelAgent whose tools are sub-agents. The supervisor's
// model routes work by calling them; there is no separate routing logic.
type Supervisor struct {
	*ModelAgent
	subAgents []Agent
	mergeMode MergeMode
}

// NewSupervisor creates a supervisor delegating to subAgents. Every
// sub-agent becomes a tool named after it that takes a single "task"
// argument. Additional plain tools may be passed through
// SupervisorOptions.Tools.
func NewSupervisor(name string, llm model.Model, subAgents []Agent, optFns ...func(o *SupervisorOptions)) (*Supervisor, error) {
	opts := SupervisorOptions{
		ContextFilter: ConversationOnly,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	mode, err := ParseMergeMode(string(opts.MergeMode))
	if err != nil {
		return nil, fmt.Errorf("supervisor %s: %w", name, err)
	}

	if len(subAgents) == 0 {
		return nil, fmt.Errorf("supervisor %s: at least one sub-agent is required", name)
	}

	if opts.ContextFilter == nil {
		opts.ContextFilter = ConversationOnly
	}

	tools := make([]tool.Tool, 0, len(subAgents)+len(opts.Tools))
	for _, sub := range subAgents {
		if sub == nil {
			return nil, fmt.Errorf("supervisor %s: nil sub-agent", name)
		}
		if sub.Name() == name {
			return nil, fmt.Errorf("supervisor %s: sub-agent may not share the supervisor's name", name)
		}
		tools = append(tools, NewAgentTool(sub, mode, opts.ContextFilter))
	}
	tools = append(tools, opts.Tools...)

	if opts.Instruction.IsZero() {
		opts.Instruction = NewInstructionFromText(supervisorInstruction(name, subAgents))
	}

	inner, err := NewModelAgent(name, llm, func(o *ModelAgentOptions) {
		*o = opts.ModelAgentOptions
		o.Tools = tools
		if o.MaxParallelTools == 0 {
			o.MaxParallelTools = 1
		}
	})
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		ModelAgent: inner,
		subAgents:  append([]Agent(nil), subAgents...),
		mergeMode:  mode,
	}, nil
}

// SubAgents returns the supervised agents in registration order.
func (s *Supervisor) SubAgents() []Agent {
	return append([]Agent(nil), s.subAgents...)
}

// MergeMode returns the configured merge mode.
func (s *Supervisor) MergeMode() MergeMode { return s.mergeMode }

// FindAgent searches the supervision tree below s for an agent by name.
func (s *Supervisor) FindAgent(name string) Agent {
	for _, sub := range s.subAgents {
		if sub.Name() == name {
			return sub
		}
		if nested, ok := sub.(*Supervisor); ok {
			if found := nested.FindAgent(name); found != nil {
				return found
			}
		}
	}
	return nil
}

func supervisorInstruction(name string, subAgents []Agent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a supervisor coordinating a team of agents.\n", name)
	b.WriteString("Delegate work by calling the agent best suited for it with a self-contained task description.\n")
	b.WriteString("Available agents:\n")

	for _, sub := range subAgents {
		fmt.Fprintf(&b, "- %s: %s\n", sub.Name(), sub.Description())
	}

	b.WriteString("When the user's request is fully answered, reply to the user directly without calling any agent.")

	return b.String()
}

// AgentTool exposes an agent as a tool.
type AgentTool struct {
	agent  Agent
	mode   MergeMode
	filter ContextFilter
}

// NewAgentTool wraps agent as a tool merging its output with mode.
func NewAgentTool(agent Agent, mode MergeMode, filter ContextFilter) *AgentTool {
	if filter == nil {
		filter = ConversationOnly
	}

	return &AgentTool{agent: agent, mode: mode, filter: filter}
}

// Name returns the wrapped agent's name.
func (t *AgentTool) Name() string { return t.agent.Name() }

// Description returns the wrapped agent's description.
func (t *AgentTool) Description() string { return t.agent.Description() }

// Parameters returns the schema of the single task argument.
func (t *AgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{
				"type":        "string",
				"description": "Self-contained description of the work to delegate to " + t.agent.Name(),
			},
		},
		"required": []string{"task"},
	}
}

// Call runs the agent on a log derived from the caller's conversation plus
// the task, and merges the produced messages according to the merge mode.
//
// Model failures and budget exhaustion of the sub-agent are reported as tool
// errors to the supervisor's model. Cancellation is returned unchanged so the
// supervisor aborts as well.
func (t *AgentTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	task, _ := args["task"].(string)
	if strings.TrimSpace(task) == "" {
		return nil, tool.NewToolError(t.Name(), "task must not be empty", tool.CodeValidation)
	}

	input := t.filter(delegationContext(toolCtx.Conversation()))
	userTask := core.NewUserMessage(task)
	userTask.Author = toolCtx.AgentName()
	input.Append(userTask)

	toolCtx.Actions().Author = t.agent.Name()

	logger := toolCtx.Logger()
	logger.Info(
		"agent.delegate.start",
		"supervisor", toolCtx.AgentName(),
		"agent", t.agent.Name(),
		"merge_mode", string(t.mode),
		"input_messages", len(input),
	)

	res, err := t.agent.Run(toolCtx.Context(), input)
	if err != nil {
		if errors.Is(err, core.ErrAborted) || errors.Is(err, context.Canceled) {
			return nil, err
		}

		return nil, &tool.ToolError{
			Tool:    t.Name(),
			Message: fmt.Sprintf("sub-agent %s failed: %v", t.agent.Name(), err),
			Code:    tool.CodeExecution,
			Details: outcomeOf(res),
		}
	}

	produced := res.ProducedMessages()

	logger.Info(
		"agent.delegate.complete",
		"supervisor", toolCtx.AgentName(),
		"agent", t.agent.Name(),
		"produced", len(produced),
		"turns", res.Turns,
	)

	if t.mode == MergeFullHistory && len(produced) > 1 {
		toolCtx.AttachTranscript(produced[:len(produced)-1]...)
	}

	return res.Final.Content, nil
}

// delegationContext returns the caller's log without the trailing assistant
// message whose calls are being answered.
func delegationContext(conversation core.Log) core.Log {
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role == core.RoleAssistant && conversation[i].HasToolCalls() {
			return conversation[:i].Clone()
		}
		if conversation[i].Role != core.RoleTool {
			break
		}
	}
	return conversation.Clone()
}

func outcomeOf(res *Result) string {
	if res == nil {
		return ""
	}
	return string(res.Outcome)
}
