package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"

	"scoreintake/internal/config"
	"scoreintake/internal/model"
)

const noneTag = "none"

type headerMapping struct {
	Header     string  `json:"header" jsonschema_description:"Spreadsheet column header, copied verbatim"`
	FieldTag   string  `json:"field_tag" jsonschema_description:"Canonical field tag, or none"`
	Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=1" jsonschema_description:"Mapping confidence from 0 to 1"`
}

type classifyOutput struct {
	Mappings         []headerMapping `json:"mappings" jsonschema_description:"One entry per input header"`
	DetectedSubjects []string        `json:"detected_subjects"`
	DataStructure    string          `json:"data_structure" jsonschema:"enum=wide,enum=long,enum=mixed"`
	Confidence       float64         `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	Issues           []string        `json:"issues"`
	Suggestions      []string        `json:"suggestions"`
}

type classifyInput struct {
	Headers       []string            `json:"headers"`
	ExampleValues map[string][]string `json:"example_values,omitempty"`
	TotalRowCount int                 `json:"total_row_count"`
}

// buildSchema 生成结构化输出 schema，field_tag 限定为封闭词表
func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(classifyOutput{})

	enum := []any{noneTag}
	for _, tag := range model.AllFieldTags() {
		enum = append(enum, string(tag))
	}
	if mappings, ok := schema.Properties.Get("mappings"); ok && mappings.Items != nil {
		if tag, ok := mappings.Items.Properties.Get("field_tag"); ok {
			tag.Enum = enum
		}
	}
	return schema
}

// OpenAIClassifier 基于 OpenAI 结构化输出的表头分类器
type OpenAIClassifier struct {
	client             *openai.Client
	model              string
	maxExamples        int
	exampleTruncateLen int
	schema             openai.ResponseFormatJSONSchemaJSONSchemaParam
	logger             *zap.Logger
}

// NewOpenAIClassifier 创建分类器
func NewOpenAIClassifier(client *openai.Client, chatModel string, maxExamples int, logger *zap.Logger) *OpenAIClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxExamples <= 0 {
		maxExamples = 3
	}
	return &OpenAIClassifier{
		client:             client,
		model:              chatModel,
		maxExamples:        maxExamples,
		exampleTruncateLen: 40,
		schema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:        "score_header_mapping",
			Description: openai.String("Exam score spreadsheet headers to canonical field tags"),
			Schema:      buildSchema(),
			Strict:      openai.Bool(true),
		},
		logger: logger,
	}
}

// NewFromConfig 按配置创建分类器；未配置 API Key 时返回 nil（不可用）
func NewFromConfig(cfg config.ClassifierConfig, logger *zap.Logger) Classifier {
	if !cfg.Enabled() {
		return nil
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return NewOpenAIClassifier(&client, cfg.Model, cfg.MaxSampleRows, logger)
}

// Classify 单次调用，超时由调用方的 ctx 控制
func (c *OpenAIClassifier) Classify(ctx context.Context, req Request) (*Response, error) {
	if c.client == nil {
		return nil, ErrUnavailable
	}
	if len(req.Headers) == 0 {
		return nil, errors.New("no headers to classify")
	}

	inputJSON, err := c.buildInput(req)
	if err != nil {
		return nil, fmt.Errorf("build input json: %w", err)
	}

	system := "You map exam score spreadsheet headers (often Chinese) to canonical field tags from a fixed enum. " +
		"Subject-scoped tags look like <subject>_score, <subject>_grade, <subject>_rank_in_class. " +
		"A header naming a subject plus a rank or grade qualifier is a rank or grade tag, not a score. " +
		"Use \"none\" when unsure. Return ONLY the JSON required by the schema."
	user := fmt.Sprintf("Map every header using the examples.\nINPUT_JSON:\n%s", inputJSON)

	chat, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: c.schema,
			},
		},
		Seed:  openai.Int(42),
		Model: openai.ChatModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrMalformedResponse)
	}

	resp, err := decodeOutput(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("semantic classifier responded",
		zap.Int("headers", len(req.Headers)),
		zap.Int("mapped", len(resp.FieldMapping)),
		zap.Float64("confidence", resp.Confidence))
	return resp, nil
}

func (c *OpenAIClassifier) buildInput(req Request) (string, error) {
	examples := make(map[string][]string, len(req.Headers))
	for col, h := range req.Headers {
		samples := make([]string, 0, c.maxExamples)
		for _, row := range req.SampleRows {
			if len(samples) >= c.maxExamples {
				break
			}
			if col >= len(row) || row[col] == "" {
				continue
			}
			samples = append(samples, truncate(row[col], c.exampleTruncateLen))
		}
		if len(samples) > 0 {
			examples[h] = samples
		}
	}

	b, err := json.Marshal(classifyInput{
		Headers:       req.Headers,
		ExampleValues: examples,
		TotalRowCount: req.TotalRowCount,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeOutput 解析模型输出并规整置信度
func decodeOutput(content string) (*Response, error) {
	var out classifyOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	resp := &Response{
		FieldMapping:     make(map[string]string, len(out.Mappings)),
		HeaderConfidence: make(map[string]float64, len(out.Mappings)),
		DetectedSubjects: out.DetectedSubjects,
		DataStructure:    out.DataStructure,
		Confidence:       clamp01(out.Confidence),
		Issues:           out.Issues,
		Suggestions:      out.Suggestions,
	}
	for _, m := range out.Mappings {
		if m.FieldTag == "" || m.FieldTag == noneTag {
			continue
		}
		resp.FieldMapping[m.Header] = m.FieldTag
		resp.HeaderConfidence[m.Header] = clamp01(m.Confidence)
	}
	return resp, nil
}

func clamp01(x float64) float64 {
	switch {
	case x < 0 || math.IsNaN(x):
		return 0
	case x > 1:
		return 1
	default:
		return math.Round(x*100) / 100
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
