package model

import "io"

// Attachment is binary content submitted alongside a prompt.
type Attachment struct {
	Content   io.Reader
	Filename  string
	MediaType string // declared by the client, may be empty
}

// GenerationRequest is built from one inbound call and consumed exactly once.
type GenerationRequest struct {
	Key               string
	Prompt            string
	SystemInstruction string
	Attachment        *Attachment
}

// GenerationOutcome is returned to the caller on success together with the
// updated usage counters.
type GenerationOutcome struct {
	Result         any
	CallsMade      int
	CallsRemaining int
}
