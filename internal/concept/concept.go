// Package concept turns natural-language add-on ideas into builder
// definitions with the help of a text generator. Generator answers are
// treated as untrusted: every field is optional and coerced on read.
package concept

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

var ErrInvalidRequest = errors.New("invalid concept request")

type Type string

const (
	TypeAuto   Type = "auto"
	TypeEntity Type = "entity"
	TypeItem   Type = "item"
	TypeBlock  Type = "block"
	TypeAddon  Type = "addon"
)

const (
	LanguageKorean  = "ko"
	LanguageEnglish = "en"
)

// Generator produces a JSON document for a prompt.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt, system string) (json.RawMessage, error)
	Model() string
}

type Request struct {
	Concept     string `json:"concept" validate:"required,min=5,max=5000"`
	ConceptType Type   `json:"conceptType,omitempty" validate:"omitempty,oneof=auto entity item block addon"`
	Language    string `json:"language,omitempty" validate:"omitempty,oneof=ko en"`
	// Detailed requests the per-type specification step. Nil means true.
	Detailed *bool `json:"detailed,omitempty"`
}

type Result struct {
	Type     Type            `json:"conceptType"`
	Analysis json.RawMessage `json:"analysis"`
	// Detailed is nil when the step was skipped or failed.
	Detailed json.RawMessage `json:"detailedAnalysis"`
}

type Expansion struct {
	Type    Type            `json:"conceptType"`
	Raw     json.RawMessage `json:"expanded"`
	Bundle  *Bundle         `json:"-"`
	Quality int             `json:"qualityScore"`
}

type Expander struct {
	gen      Generator
	logger   *log.Logger
	validate *validator.Validate
}

func NewExpander(gen Generator, logger *log.Logger) *Expander {
	return &Expander{
		gen:      gen,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (e *Expander) Model() string {
	return e.gen.Model()
}

// Validate checks req and fills its defaults.
func (e *Expander) Validate(req *Request) error {
	req.Concept = strings.TrimSpace(req.Concept)
	if err := e.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, describe(err))
	}
	if req.ConceptType == "" {
		req.ConceptType = TypeAuto
	}
	if req.Language == "" {
		req.Language = LanguageKorean
	}
	return nil
}

// Analyze runs the general analysis and, for entity, item and block
// concepts, a detailed specification step. A failed detail step is logged
// and leaves Result.Detailed nil.
func (e *Expander) Analyze(ctx context.Context, req Request) (*Result, error) {
	if err := e.Validate(&req); err != nil {
		return nil, err
	}
	analysis, err := e.gen.GenerateJSON(ctx, analysisPrompt(req), analystSystem)
	if err != nil {
		return nil, fmt.Errorf("analyze concept: %w", err)
	}

	res := &Result{Type: req.ConceptType, Analysis: analysis}
	if res.Type == TypeAuto {
		res.Type = parseType(gjson.GetBytes(analysis, "conceptType").String())
	}
	if req.Detailed != nil && !*req.Detailed {
		return res, nil
	}
	switch res.Type {
	case TypeEntity, TypeItem, TypeBlock:
		detail, err := e.gen.GenerateJSON(ctx, detailPrompt(res.Type, req.Concept), analystSystem)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("detailed analysis failed", "type", res.Type, "err", err)
			return res, nil
		}
		res.Detailed = detail
	}
	return res, nil
}

// Expand asks for a balanced, fully specified design and converts it into
// builder definitions.
func (e *Expander) Expand(ctx context.Context, concept, language string) (*Expansion, error) {
	req := Request{Concept: concept, ConceptType: TypeAuto, Language: language}
	if err := e.Validate(&req); err != nil {
		return nil, err
	}
	raw, err := e.gen.GenerateJSON(ctx, expandPrompt(req.Concept, req.Language), expertSystem)
	if err != nil {
		return nil, fmt.Errorf("expand concept: %w", err)
	}
	bundle, err := TransformExpanded(raw)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("concept expanded", "type", gjson.GetBytes(raw, "conceptType").String(),
		"entities", len(bundle.Entities), "items", len(bundle.Items), "blocks", len(bundle.Blocks))
	return &Expansion{
		Type:    parseType(gjson.GetBytes(raw, "conceptType").String()),
		Raw:     raw,
		Bundle:  bundle,
		Quality: int(gjson.GetBytes(raw, "qualityScore").Int()),
	}, nil
}

func parseType(s string) Type {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeEntity, TypeItem, TypeBlock:
		return t
	}
	return TypeAddon
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be between 5 and 5000 characters", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
