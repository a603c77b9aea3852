package processor

import "time"

type InstructionKind string

const (
	InstructionSay      InstructionKind = "say"
	InstructionPlay     InstructionKind = "play"
	InstructionGather   InstructionKind = "gather"
	InstructionRecord   InstructionKind = "record"
	InstructionRedirect InstructionKind = "redirect"
)

// Instruction is one provider neutral call-control verb.
type Instruction struct {
	Kind InstructionKind
	// Text is spoken by a say, or inside a gather as its prompt.
	Text string
	// AudioCallSID names the call whose latest audio a play should fetch.
	AudioCallSID string
	// Action is where gather, record and redirect send the next event.
	Action    string
	NumDigits int
	Timeout   time.Duration
	MaxLength time.Duration
}

// Reply is the controller's answer to one webhook event.
type Reply struct {
	Branch       string
	Instructions []Instruction
}

// Find returns the first instruction of the given kind.
func (r Reply) Find(kind InstructionKind) (Instruction, bool) {
	for _, in := range r.Instructions {
		if in.Kind == kind {
			return in, true
		}
	}
	return Instruction{}, false
}

// Has reports whether the reply contains an instruction of the given kind.
func (r Reply) Has(kind InstructionKind) bool {
	_, ok := r.Find(kind)
	return ok
}
