package miktos

// Model is a model identifier in "<provider>/<model>" form.
//
// The API routes a generation to the provider named by the prefix, so any
// identifier the server knows about can be used, not only the constants below.
type Model = string

const (
	ModelGPT4o       Model = "openai/gpt-4o"
	ModelGPT4Turbo   Model = "openai/gpt-4-turbo"
	ModelGPT35Turbo  Model = "openai/gpt-3.5-turbo"
	ModelClaude3Opus Model = "anthropic/claude-3-opus"

	ModelClaude3Sonnet Model = "anthropic/claude-3-sonnet"
	ModelClaude3Haiku  Model = "anthropic/claude-3-haiku"
)
