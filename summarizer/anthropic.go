package summarizer

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Prompt input caps. The model sees at most this much of the diff and page;
// guideline pages that exceed them still summarize from the leading portion.
const (
	maxDiffPrompt = 8000
	maxPagePrompt = 6000
)

// ClaudeConfig configures the Claude-backed summarizer.
type ClaudeConfig struct {
	APIKey string
	Model  string // default: claude-sonnet-4-6
}

func (c *ClaudeConfig) defaults() {
	if c.Model == "" {
		c.Model = "claude-sonnet-4-6"
	}
}

// Claude implements Summarizer and Personalizer against the Anthropic API.
type Claude struct {
	client anthropic.Client
	model  string
}

// NewClaude creates a Claude summarizer.
func NewClaude(cfg ClaudeConfig) *Claude {
	cfg.defaults()
	return &Claude{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}
}

func (c *Claude) complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic call: %w", err)
	}
	if len(msg.Content) == 0 {
		return "", fmt.Errorf("anthropic call: empty response")
	}
	return strings.TrimSpace(msg.Content[0].Text), nil
}

// Summarize generates the administrator summary first, then derives both
// audience drafts from it. Three sequential model calls; any failure aborts
// the whole bundle.
func (c *Claude) Summarize(ctx context.Context, req Request) (*Drafts, error) {
	changeContext := "This is the first time we are capturing this page — " +
		"summarize the key guideline content present."
	if !req.FirstCapture {
		changeContext = "The following diff shows what changed on the guideline page:\n\n" +
			truncate(req.DiffText, maxDiffPrompt)
	}

	summary, err := c.complete(ctx,
		"You are a clinical genetics expert. Analyze changes to genetic counseling "+
			"practice guidelines and produce a clear, accurate summary for a genetic "+
			"counseling practice administrator. Be concise but complete. "+
			"Note: what changed, why it likely changed, and what clinical impact it may have.",
		fmt.Sprintf("URL: %s\n\n%s\n\n"+
			"Current full page content (for context):\n%s\n\n"+
			"Please provide:\n"+
			"1. What changed (specific, factual)\n"+
			"2. Clinical significance of the change\n"+
			"3. Any action items for the practice\n"+
			"4. Confidence level in your interpretation (High/Medium/Low)",
			req.URL, changeContext, truncate(req.NewText, maxPagePrompt)),
		1200)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	patientDraft, err := c.complete(ctx,
		"You are a compassionate genetic counselor writing to patients. "+
			"Use plain language (8th grade reading level). Avoid jargon. "+
			"Be warm, reassuring, and actionable. Do not cause unnecessary alarm. "+
			"Never give specific medical advice — encourage patients to discuss with their provider.",
		fmt.Sprintf("An update was made to practice guidelines. Here is a summary of what changed:\n\n"+
			"%s\n\n"+
			"Write a personalized email to a patient explaining this update. "+
			"Include: what this means for them in plain terms, that their care team will "+
			"reach out if any action is needed, and an invitation to contact the office with questions. "+
			"Use %s as a placeholder. Keep it under 200 words.",
			summary, PatientPlaceholder),
		600)
	if err != nil {
		return nil, fmt.Errorf("patient draft: %w", err)
	}

	clinicianDraft, err := c.complete(ctx,
		"You are a senior genetic counselor writing to clinical colleagues. "+
			"Use precise clinical language. Be direct and informative. "+
			"Focus on practice implications and any required changes to workflow or counseling.",
		fmt.Sprintf("An update was made to practice guidelines. Here is a summary of what changed:\n\n"+
			"%s\n\n"+
			"Write a professional update email for clinicians and genetic counselors. "+
			"Include: the specific guideline change, clinical and workflow implications, "+
			"any recommended actions, and a note that full details are available at the source website. "+
			"Use %s as a placeholder. Keep it under 250 words.",
			summary, ClinicianPlaceholder),
		700)
	if err != nil {
		return nil, fmt.Errorf("clinician draft: %w", err)
	}

	return &Drafts{
		Summary:        summary,
		PatientDraft:   patientDraft,
		ClinicianDraft: clinicianDraft,
	}, nil
}

// Personalize substitutes the recipient name, and when the recipient has
// recorded conditions, appends a short model-written relevance note.
func (c *Claude) Personalize(ctx context.Context, template, name, recipientType string, conditions []string) (string, error) {
	message := SubstitutePlaceholders(template, name)
	if len(conditions) == 0 {
		return message, nil
	}

	addition, err := c.complete(ctx,
		"You are a genetic counselor. Write 1-2 sentences only.",
		fmt.Sprintf("Add a brief, personalized sentence to this %s message "+
			"noting that this update may be particularly relevant to someone with "+
			"the following conditions/testing history: %s. "+
			"Keep it general and non-alarming. Return only the sentence(s), nothing else.",
			recipientType, strings.Join(conditions, ", ")),
		150)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(message, " \n") + "\n\n" + addition, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
