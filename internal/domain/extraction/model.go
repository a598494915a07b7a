package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

const (
	modelTemperature = 0.1
	modelMaxTokens   = 200
)

// ContextSource supplies retrieved knowledge for prompts.
type ContextSource interface {
	Build(ctx context.Context, query string, maxChars int) string
}

// ModelStrategy asks the generative model for a JSON object of facts.
type ModelStrategy struct {
	llm     ports.LLMService
	context ContextSource
	schema  Schema
	timeout time.Duration
	logger  *zap.Logger
}

// NewModelStrategy creates the model tier. knowledge may be nil.
func NewModelStrategy(llm ports.LLMService, knowledge ContextSource, schema Schema, timeout time.Duration, logger *zap.Logger) *ModelStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelStrategy{
		llm:     llm,
		context: knowledge,
		schema:  schema,
		timeout: timeout,
		logger:  logger.With(zap.String("tier", "model")),
	}
}

// Name implements Strategy.
func (s *ModelStrategy) Name() string { return "model" }

// Extract implements Strategy. Any failure returns an error so the chain logs it.
func (s *ModelStrategy) Extract(ctx context.Context, in Input) (Result, error) {
	if s.llm == nil {
		return Result{}, nil
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var knowledge string
	if s.context != nil {
		knowledge = s.context.Build(ctx, in.Message, s.schema.ContextBudget)
	}

	reply, err := s.llm.Generate(ctx, s.buildPrompt(in, knowledge), ports.GenerateOptions{
		Temperature:     modelTemperature,
		MaxOutputTokens: modelMaxTokens,
		JSON:            true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("generating extraction: %w", err)
	}

	raw, err := parseJSONObject(reply)
	if err != nil {
		return Result{}, fmt.Errorf("parsing extraction reply: %w", err)
	}

	facts := s.validate(raw, in.Message)
	return Result{Facts: facts}, nil
}

func (s *ModelStrategy) buildPrompt(in Input, knowledge string) string {
	var sb strings.Builder
	sb.WriteString(s.schema.Preamble)
	sb.WriteString("\n")
	if knowledge != "" {
		sb.WriteString("\n")
		sb.WriteString(knowledge)
		sb.WriteString("\n")
	}

	sb.WriteString("\nHISTORIAL DE CONVERSACIÓN:\n")
	sb.WriteString(formatHistory(in.History, s.schema.HistoryTurns))

	known, _ := json.MarshalIndent(in.Known, "", "  ")
	sb.WriteString("\n\nDATOS YA RECOLECTADOS:\n")
	sb.Write(known)

	sb.WriteString("\n\nMENSAJE ACTUAL DEL USUARIO:\n")
	sb.WriteString(in.Message)

	sb.WriteString("\n\nTu tarea es extraer la siguiente información del mensaje del usuario:\n\n")
	for i, k := range s.schema.Keys {
		fmt.Fprintf(&sb, "%d. **%s**: %s", i+1, k.Name, k.Description)
		if len(k.Vocabulary) > 0 {
			fmt.Fprintf(&sb, ". Uno de [%s]", strings.Join(k.Vocabulary, ", "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nINSTRUCCIONES:\n")
	sb.WriteString("- Solo extrae datos que estén EXPLÍCITAMENTE mencionados\n")
	sb.WriteString("- No inventes información\n")
	sb.WriteString("- Responde SOLO con un objeto JSON válido\n")
	sb.WriteString("- Si un dato no está presente, no lo incluyas en el JSON\n")
	if s.schema.Example != "" {
		sb.WriteString("\nEjemplo de respuesta:\n")
		sb.WriteString(s.schema.Example)
		sb.WriteString("\n")
	}
	sb.WriteString("\nResponde SOLO con JSON:")
	return sb.String()
}

// validate keeps only schema keys whose values fit their vocabulary, format
// and grounding in the utterance.
func (s *ModelStrategy) validate(raw map[string]any, utterance string) entities.Facts {
	facts := entities.Facts{}
	for key, value := range raw {
		spec, ok := s.schema.Spec(key)
		if !ok {
			continue
		}

		if spec.Kind == KindBool {
			b, ok := asBool(value)
			if !ok || (spec.SignalOnly && !b) {
				continue
			}
			facts[key] = b
			continue
		}

		str, ok := asString(value)
		if !ok || str == "" {
			continue
		}
		if len(spec.Vocabulary) > 0 {
			str = strings.ToLower(str)
			if !contains(spec.Vocabulary, str) {
				s.logger.Debug("dropping value outside vocabulary", zap.String("key", key), zap.String("value", str))
				continue
			}
		}
		if spec.Format != nil && !spec.Format.MatchString(str) {
			continue
		}
		switch spec.Grounding {
		case GroundDigits:
			if !digitsGrounded(str, utterance) {
				s.logger.Debug("dropping ungrounded value", zap.String("key", key))
				continue
			}
		case GroundWords:
			if !wordsGrounded(str, utterance) {
				continue
			}
		}
		if spec.Normalize != nil {
			str = spec.Normalize(str)
		}
		facts[key] = str
	}
	return facts
}

// parseJSONObject strips markdown fences and decodes the outermost object.
func parseJSONObject(reply string) (map[string]any, error) {
	text := strings.TrimSpace(reply)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in reply %q", truncate(reply, 80))
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func formatHistory(turns []entities.Turn, n int) string {
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Content))
	}
	return strings.Join(lines, "\n")
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(t)))
		return b, err == nil
	}
	return false, false
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
