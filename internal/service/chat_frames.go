package service

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/skillup-api/internal/dto"
)

//go:embed schemas/chat_frame.json
var chatFrameSchemaSource string

const chatFrameSchemaURL = "skillup://schemas/chat_frame.json"

// ErrInvalidFrame indicates a channel frame that is malformed or violates the frame schema.
var ErrInvalidFrame = errors.New("invalid frame")

// ChatFrameValidator checks inbound channel frames against the frame schema.
type ChatFrameValidator struct {
	schema *jsonschema.Schema
}

// NewChatFrameValidator compiles the embedded frame schema.
func NewChatFrameValidator() (*ChatFrameValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(chatFrameSchemaURL, strings.NewReader(chatFrameSchemaSource)); err != nil {
		return nil, fmt.Errorf("load chat frame schema: %w", err)
	}
	schema, err := compiler.Compile(chatFrameSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile chat frame schema: %w", err)
	}
	return &ChatFrameValidator{schema: schema}, nil
}

// Decode validates raw against the schema and returns the envelope.
func (v *ChatFrameValidator) Decode(raw []byte) (dto.ChatFrame, error) {
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return dto.ChatFrame{}, fmt.Errorf("%w: not valid json", ErrInvalidFrame)
	}
	if err := v.schema.Validate(document); err != nil {
		return dto.ChatFrame{}, fmt.Errorf("%w: %s", ErrInvalidFrame, schemaErrorMessage(err))
	}

	var frame dto.ChatFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return dto.ChatFrame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return frame, nil
}

// schemaErrorMessage reports the most specific cause instead of the schema's top-level summary.
func schemaErrorMessage(err error) string {
	validationErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	leaf := validationErr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	location := leaf.InstanceLocation
	if location == "" {
		location = "/"
	}
	return fmt.Sprintf("%s: %s", location, leaf.Message)
}
