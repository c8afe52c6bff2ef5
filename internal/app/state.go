package app

// PromptState is the step a prompt model is at.
type PromptState int

const (
	EnteringStart PromptState = iota
	EnteringEnd
	Answered
	Cancelled
)
