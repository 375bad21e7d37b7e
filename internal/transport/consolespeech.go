package transport

import (
	"context"
	"log"

	"github.com/asgard/openeyes/internal/executor"
)

// ConsoleSpeech is a SpeechCollaborator that writes utterances to the
// process log instead of driving a text-to-speech engine. It exists for
// local development and tests where no audio output is available, and is
// the speech collaborator cmd/openeyes runs with.
type ConsoleSpeech struct{}

// NewConsoleSpeech returns a ready-to-use ConsoleSpeech collaborator.
func NewConsoleSpeech() *ConsoleSpeech { return &ConsoleSpeech{} }

func (c *ConsoleSpeech) Speak(ctx context.Context, text string, priority executor.SpeechPriority) error {
	log.Printf("[speech] (%s) %s", priority, text)
	return nil
}

func (c *ConsoleSpeech) Interrupt(ctx context.Context) error {
	log.Printf("[speech] interrupt")
	return nil
}

func (c *ConsoleSpeech) Pause(ctx context.Context) error {
	log.Printf("[speech] pause")
	return nil
}

func (c *ConsoleSpeech) Resume(ctx context.Context) error {
	log.Printf("[speech] resume")
	return nil
}

func (c *ConsoleSpeech) Stop(ctx context.Context) error {
	log.Printf("[speech] stop")
	return nil
}

func (c *ConsoleSpeech) WaitForCompletion(ctx context.Context) error {
	return nil
}
