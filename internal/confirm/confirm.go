// Package confirm implements the secondary confirmation step required before destructive
// actions (cancelling a submission or confirmation, rejecting a slot or batch).
package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jwalitptl/schoolhealth/pkg/errors"
)

// Prompt describes the action awaiting acknowledgement.
type Prompt struct {
	Action  string
	Subject string
	Message string
}

// Key identifies the prompt for one actor, so a token cannot be replayed on another record.
func (p Prompt) Key(actorID string) string {
	return actorID + "|" + p.Action + "|" + p.Subject
}

// Confirmer returns nil once the user has acknowledged the prompt.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) error
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, p Prompt) error

func (f ConfirmerFunc) Confirm(ctx context.Context, p Prompt) error { return f(ctx, p) }

// AssumeYes acknowledges every prompt.
var AssumeYes Confirmer = ConfirmerFunc(func(context.Context, Prompt) error { return nil })

// Deny refuses every prompt.
var Deny Confirmer = ConfirmerFunc(func(_ context.Context, p Prompt) error { return errors.NotConfirmed(p.Action) })

// PromptConfirmer asks on a terminal.
type PromptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: bufio.NewReader(in), out: out}
}

func (c *PromptConfirmer) Confirm(ctx context.Context, p Prompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s\nType 'yes' to %s %s: ", p.Message, p.Action, p.Subject)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return errors.NotConfirmed(p.Action)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	}
	return errors.NotConfirmed(p.Action)
}
