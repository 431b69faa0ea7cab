package models

// ToolType names a tool variant on the agent boundary.
type ToolType string

const (
	ToolTypeSearch   ToolType = "cortex_search"
	ToolTypeAnalyst  ToolType = "cortex_analyst"
	ToolTypeFunction ToolType = "function"
)

// Tool is the closed set of tool descriptors registered with the agent runtime.
// Only SearchTool, AnalystTool and FunctionTool implement it.
type Tool interface {
	ToolName() string
	ToolType() ToolType
	isTool()
}

// SearchTool exposes a retrieval service to the agent.
type SearchTool struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	ServiceName     string   `json:"service_name"` // fully qualified
	DataDescription string   `json:"data_description"`
	RetrievalColumn []string `json:"retrieval_columns"`
	TopK            int      `json:"k"`
}

// AnalystTool exposes a text-to-SQL analyst over a semantic model.
type AnalystTool struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	SemanticModelFile string `json:"semantic_model"`
	StageURL          string `json:"stage,omitempty"`
}

// FunctionTool is an agent-invoked function reachable over HTTP.
type FunctionTool struct {
	Name              string `json:"name"`
	Description       string `json:"tool_description"`
	OutputDescription string `json:"output_description"`
	Endpoint          string `json:"endpoint"`
}

func (t SearchTool) ToolName() string   { return t.Name }
func (t SearchTool) ToolType() ToolType { return ToolTypeSearch }
func (SearchTool) isTool()              {}

func (t AnalystTool) ToolName() string   { return t.Name }
func (t AnalystTool) ToolType() ToolType { return ToolTypeAnalyst }
func (AnalystTool) isTool()              {}

func (t FunctionTool) ToolName() string   { return t.Name }
func (t FunctionTool) ToolType() ToolType { return ToolTypeFunction }
func (FunctionTool) isTool()              {}

// ToolEnvelope is the wire form of a Tool: its type tag plus its fields.
type ToolEnvelope struct {
	Type ToolType `json:"type"`
	Spec Tool     `json:"spec"`
}

// Envelope wraps a tool for serialization.
func Envelope(t Tool) ToolEnvelope {
	return ToolEnvelope{Type: t.ToolType(), Spec: t}
}

// SourceMetadata is one retrieved row cited by the agent.
type SourceMetadata struct {
	FileName string `json:"file_name,omitempty"`
	Text     string `json:"text,omitempty"`
	ChunkID  string `json:"chunk_id,omitempty"`
}

// Source groups the rows one tool contributed to an answer.
type Source struct {
	ToolType string           `json:"tool_type"`
	ToolName string           `json:"tool_name"`
	Metadata []SourceMetadata `json:"metadata"`
}

// AgentResult is the agent runtime's answer to a query.
type AgentResult struct {
	Output  string   `json:"output"`
	Sources []Source `json:"sources"`
}
