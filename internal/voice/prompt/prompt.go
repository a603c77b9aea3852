// Package prompt holds the text shared by the reasoning providers.
package prompt

// SystemInstruction frames every conversation sent to a reasoning model.
const SystemInstruction = "You are a helpful voice assistant speaking with a caller over the phone. " +
	"Answer in plain English in one to three short sentences. " +
	"Do not use markdown, lists, emoji or URLs because the reply is converted to speech."

// FallbackReply is spoken when the reasoning model cannot produce an answer.
const FallbackReply = "I'm sorry, I couldn't process that."
