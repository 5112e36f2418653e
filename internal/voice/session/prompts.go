package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/charterline/internal/voice/navigator"
	"github.com/MrWong99/charterline/pkg/charter"
	"github.com/MrWong99/charterline/pkg/realtime"
)

// Compile-time assertion that prompter satisfies navigator.Prompter.
var _ navigator.Prompter = prompter{}

// prompter routes navigator prompts through the controller. The navigator is
// only driven with the controller mutex held.
type prompter struct{ c *Controller }

func (p prompter) AskField(f charter.FieldSpec, prev *charter.CapturedFieldValue) {
	p.c.prompt(context.Background(), "ask", askFieldPrompt(f, prev))
}

func (p prompter) NoEarlierField(first charter.FieldSpec) {
	p.c.prompt(context.Background(), "no_earlier_field", fmt.Sprintf(
		"Tell the user there is no field before the %s, then ask for the %s again.",
		first.DisplayName(), first.DisplayName()))
}

func (p prompter) SkipRefused(f charter.FieldSpec) {
	p.c.prompt(context.Background(), "skip_refused", fmt.Sprintf(
		"Tell the user the %s is required and cannot be skipped, then ask for it again.",
		f.DisplayName()))
}

// prompt asks the agent to speak: a system conversation item carrying text
// followed by a response trigger. It returns false when either send fails;
// the session carries on regardless.
func (c *Controller) prompt(ctx context.Context, kind, text string) bool {
	if c.transport == nil {
		return false
	}
	c.lastPromptAt = c.now()
	c.metrics.RecordPrompt(ctx, kind)

	item, err := realtime.ConversationItem(realtime.RoleSystem, text)
	if err != nil {
		c.logger.Warn("session: encode prompt", "kind", kind, "err", err)
		return false
	}
	if !c.send(ctx, realtime.TypeConversationItemCreate, item) {
		return false
	}
	trigger, err := realtime.ResponseCreate()
	if err != nil {
		c.logger.Warn("session: encode response trigger", "err", err)
		return false
	}
	return c.send(ctx, realtime.TypeResponseCreate, trigger)
}

func (c *Controller) send(ctx context.Context, msgType string, msg []byte) bool {
	if err := c.transport.Send(msg); err != nil {
		c.logger.Warn("session: send failed", "message", msgType, "err", err)
		c.metrics.RecordSendFailure(ctx, msgType)
		return false
	}
	return true
}

func askFieldPrompt(f charter.FieldSpec, prev *charter.CapturedFieldValue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ask the user for the %s.", f.DisplayName())
	if f.HelpText != "" {
		fmt.Fprintf(&b, " Guidance: %s", f.HelpText)
	}
	if f.Example != "" {
		fmt.Fprintf(&b, " Example answer: %q.", f.Example)
	}
	switch f.Kind() {
	case charter.TypeLongForm:
		b.WriteString(` When they have answered, restate it as polished prose after "Captured:" and end with a period.`)
	case charter.TypeStringList, charter.TypeObjectList:
		b.WriteString(" They may list several items.")
	}
	if prev != nil && prev.Value != "" {
		fmt.Fprintf(&b, " It is currently %q; ask whether they want to keep it or change it.", prev.Value)
	}
	return b.String()
}

func reviewPrompt(schema charter.Schema, captured charter.CapturedValues) string {
	var have, missing []string
	for _, f := range schema {
		if v, ok := captured.Get(f.ID); ok {
			have = append(have, fmt.Sprintf("%s: %s", f.DisplayName(), v.Value))
			continue
		}
		name := f.DisplayName()
		if f.Required {
			name += " (required)"
		}
		missing = append(missing, name)
	}

	var b strings.Builder
	b.WriteString("Briefly read back the progress so far.")
	if len(have) > 0 {
		fmt.Fprintf(&b, " Captured: %s.", strings.Join(have, "; "))
	} else {
		b.WriteString(" Nothing has been captured yet.")
	}
	if len(missing) > 0 {
		fmt.Fprintf(&b, " Still missing: %s.", strings.Join(missing, ", "))
	}
	b.WriteString(" Then continue with the current question.")
	return b.String()
}

func externalEditPrompt(f charter.FieldSpec, value string) string {
	if value == "" {
		return fmt.Sprintf("The user cleared the %s in the form. Acknowledge it in one short sentence and continue.", f.DisplayName())
	}
	return fmt.Sprintf("The user changed the %s in the form to %q. Acknowledge it in one short sentence and continue.", f.DisplayName(), value)
}

func completionPrompt(schema charter.Schema, captured charter.CapturedValues) string {
	var missing []string
	for _, f := range schema {
		if f.Required && !captured.Has(f.ID) {
			missing = append(missing, f.DisplayName())
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("The user has finished for now. These required fields are still empty: %s. Mention them and close the conversation politely.", strings.Join(missing, ", "))
	}
	return "All fields are captured. Thank the user and close the conversation in one sentence."
}

// defaultInstructions builds the agent system prompt from the schema.
func defaultInstructions(schema charter.Schema) string {
	var b strings.Builder
	b.WriteString("You are helping the user fill in a project charter by voice. ")
	b.WriteString("Ask about one field at a time, in order, and keep every reply short. ")
	b.WriteString(`For narrative fields, restate the user's answer as polished prose after "Captured:" and end it with a period.`)
	b.WriteString("\n\nFields:\n")
	for _, f := range schema {
		fmt.Fprintf(&b, "- %s", f.DisplayName())
		if f.Required {
			b.WriteString(" (required)")
		}
		if f.HelpText != "" {
			fmt.Fprintf(&b, ": %s", f.HelpText)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
