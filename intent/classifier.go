package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/routemesh/classifier"
	"github.com/hupe1980/routemesh/core"
	"github.com/hupe1980/routemesh/internal/util"
	"github.com/hupe1980/routemesh/logging"
	"github.com/hupe1980/routemesh/model"
)

// DefaultLookbackMessages is the number of recent messages scanned for intents.
const DefaultLookbackMessages = 5

const intentPrompt = `Classify the intents in these messages.

Valid intent categories: {{ join ", " .Categories }}

Recent conversation:
{{ .History }}

Extract the intents and any entities mentioned.`

type classifiedIntents struct {
	Intents    []string          `json:"intents" description:"Classified intents from the message"`
	Entities   map[string]string `json:"entities,omitempty" description:"Extracted entities (e.g. date, location, name)"`
	Confidence float64           `json:"confidence" description:"Classification confidence between 0.0 and 1.0"`
}

var intentSchema = util.CreateSchema(classifiedIntents{})

// Options configures a Classifier.
type Options struct {
	// Categories lists the valid intent categories.
	Categories []string
	// LookbackMessages is the number of recent messages scanned.
	LookbackMessages int
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Classifier classifies user intents from recent conversation and keeps the
// previous turn's intents when the current turn yields none.
type Classifier struct {
	model model.Model
	opts  Options
}

// NewClassifier creates a model-backed intent classifier.
func NewClassifier(m model.Model, optFns ...func(o *Options)) *Classifier {
	opts := Options{
		LookbackMessages: DefaultLookbackMessages,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Classifier{model: m, opts: opts}
}

// Classify extracts intents from messages, carrying previous forward when the
// model finds none.
func (c *Classifier) Classify(ctx context.Context, messages []core.Message, previous []string) (core.IntentSet, error) {
	prompt, err := util.RenderTemplate(intentPrompt, map[string]any{
		"Categories": c.opts.Categories,
		"History":    classifier.RenderHistory(core.Recent(messages, c.opts.LookbackMessages)),
	})
	if err != nil {
		return core.IntentSet{}, fmt.Errorf("render intent prompt: %w", err)
	}

	start := time.Now()
	resp, err := model.Collect(ctx, c.model, model.Request{
		Instructions: prompt,
		Messages:     core.Recent(messages, c.opts.LookbackMessages),
		Schema:       intentSchema,
		SchemaName:   "classified_intents",
	})
	if err != nil {
		logging.LogClassification(c.opts.Logger, "intent", time.Since(start), 0, err)
		return core.IntentSet{}, fmt.Errorf("classify intents: %w", err)
	}

	current, err := DecodeIntents(resp.Text)
	if err != nil {
		return core.IntentSet{}, err
	}

	out := Persist(current, previous)
	logging.LogClassification(c.opts.Logger, "intent", time.Since(start), out.Confidence, nil,
		"intents", out.Intents,
		"carried_forward", len(current.Intents) == 0 && len(previous) > 0,
	)
	return out, nil
}

// DecodeIntents parses and validates a structured intent reply.
func DecodeIntents(text string) (core.IntentSet, error) {
	text = strings.TrimSpace(text)
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		text = text[i : j+1]
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return core.IntentSet{}, &core.InvalidClassificationError{Field: "body", Message: err.Error()}
	}
	if err := util.ValidateParameters(fields, intentSchema); err != nil {
		var ve *util.ValidationError
		if errors.As(err, &ve) {
			return core.IntentSet{}, &core.InvalidClassificationError{Field: ve.Field, Value: ve.Value, Message: ve.Message}
		}
		return core.IntentSet{}, err
	}

	var payload classifiedIntents
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return core.IntentSet{}, &core.InvalidClassificationError{Field: "body", Message: err.Error()}
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return core.IntentSet{}, &core.InvalidClassificationError{
			Field:   "confidence",
			Value:   payload.Confidence,
			Message: "must be within [0.0, 1.0]",
		}
	}

	return core.IntentSet{
		Intents:    payload.Intents,
		Entities:   payload.Entities,
		Confidence: payload.Confidence,
	}.Clone(), nil
}
