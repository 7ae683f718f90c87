package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/routemesh/core"
	"github.com/hupe1980/routemesh/internal/util"
	"github.com/hupe1980/routemesh/logging"
	"github.com/hupe1980/routemesh/model"
)

// DefaultHistoryLimit is the number of recent messages rendered into the prompt.
const DefaultHistoryLimit = 15

const routePrompt = `You are a message router at the '{{ .Level }}' level.

Available routes:
{{ .Routes }}

Current route: {{ default "none" .CurrentRoute }}

Recent conversation:
{{ .History }}

New message: {{ .Message }}

Classify this message and determine the best route.`

// routeClassification is the structured output requested from the model.
// Only intent and confidence are required; an absent suggested route decodes
// as empty and absent flags fall back to their defaults.
type routeClassification struct {
	Intent              string   `json:"intent" description:"Classified intent of the message"`
	SuggestedRoute      string   `json:"suggested_route" description:"Route to send the message to"`
	Confidence          *float64 `json:"confidence" description:"Classification confidence between 0.0 and 1.0"`
	IsVague             *bool    `json:"is_vague" description:"Whether the message is ambiguous"`
	RequiresRouteChange *bool    `json:"requires_route_change" description:"Whether a route change is needed"`
}

var routeClassificationSchema = func() map[string]any {
	s := util.CreateSchema(routeClassification{})
	s["required"] = []string{"intent", "confidence"}
	return s
}()

// LLMOptions configures an LLMClassifier.
type LLMOptions struct {
	// Level names the routing level in the prompt (e.g. "root", "team").
	Level string
	// RoutesDescription lists the available routes for the model.
	RoutesDescription string
	// HistoryLimit caps the number of recent messages rendered into the prompt.
	HistoryLimit int
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// LLMClassifier routes messages using structured model output.
type LLMClassifier struct {
	model model.Model
	opts  LLMOptions
}

var _ Classifier = (*LLMClassifier)(nil)

// NewLLMClassifier creates a model-backed classifier.
func NewLLMClassifier(m model.Model, optFns ...func(o *LLMOptions)) *LLMClassifier {
	opts := LLMOptions{
		Level:        core.DefaultLevel,
		HistoryLimit: DefaultHistoryLimit,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &LLMClassifier{model: m, opts: opts}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, req Request) (core.ClassificationResult, error) {
	prompt, err := util.RenderTemplate(routePrompt, map[string]any{
		"Level":        c.opts.Level,
		"Routes":       c.opts.RoutesDescription,
		"CurrentRoute": req.CurrentRoute,
		"History":      RenderHistory(core.Recent(req.RecentMessages, c.opts.HistoryLimit)),
		"Message":      req.Message,
	})
	if err != nil {
		return core.ClassificationResult{}, fmt.Errorf("render route prompt: %w", err)
	}

	start := time.Now()
	resp, err := model.Collect(ctx, c.model, model.Request{
		Instructions: prompt,
		Messages:     []core.Message{core.UserMessage(req.Message)},
		Schema:       routeClassificationSchema,
		SchemaName:   "route_classification",
	})
	if err != nil {
		logging.LogClassification(c.opts.Logger, "route", time.Since(start), 0, err, "level", c.opts.Level)
		return core.ClassificationResult{}, fmt.Errorf("classify message: %w", err)
	}

	res, err := DecodeClassification(resp.Text)
	if err != nil {
		return core.ClassificationResult{}, err
	}

	logging.LogClassification(c.opts.Logger, "route", time.Since(start), res.Confidence, nil,
		"level", c.opts.Level,
		"intent", res.Label,
		"suggested_route", res.SuggestedRoute,
	)
	return res, nil
}

// DecodeClassification parses a structured model reply and validates it.
// Missing required fields, wrong types and out-of-range confidence are
// contract violations.
func DecodeClassification(text string) (core.ClassificationResult, error) {
	raw := extractJSON(text)

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return core.ClassificationResult{}, &core.InvalidClassificationError{Field: "body", Message: err.Error()}
	}
	if err := util.ValidateParameters(fields, routeClassificationSchema); err != nil {
		var ve *util.ValidationError
		if errors.As(err, &ve) {
			return core.ClassificationResult{}, &core.InvalidClassificationError{Field: ve.Field, Value: ve.Value, Message: ve.Message}
		}
		return core.ClassificationResult{}, err
	}

	var payload routeClassification
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return core.ClassificationResult{}, &core.InvalidClassificationError{Field: "body", Message: err.Error()}
	}
	if payload.Confidence == nil {
		return core.ClassificationResult{}, &core.InvalidClassificationError{Field: "confidence", Message: "required field is missing"}
	}

	res := core.ClassificationResult{
		Label:               payload.Intent,
		SuggestedRoute:      strings.TrimSpace(payload.SuggestedRoute),
		Confidence:          *payload.Confidence,
		IsVague:             false,
		RequiresRouteChange: true,
	}
	if payload.IsVague != nil {
		res.IsVague = *payload.IsVague
	}
	if payload.RequiresRouteChange != nil {
		res.RequiresRouteChange = *payload.RequiresRouteChange
	}
	if err := res.Validate(); err != nil {
		return core.ClassificationResult{}, err
	}
	return res, nil
}

// RenderHistory renders messages as "User: ..." / "Assistant: ..." lines.
// Non user messages are rendered as the assistant.
func RenderHistory(msgs []core.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		speaker := "Assistant"
		if m.Role == core.RoleUser {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// extractJSON strips markdown code fences and surrounding prose that some
// providers wrap around a JSON object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
