package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/born-ml/instruct/internal/instruct"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Stage is "validation" or "codec" for template errors.
	Stage string `json:"stage,omitempty"`
}

// InfoResponse describes the loaded vocabulary and template.
type InfoResponse struct {
	Version   instruct.Version   `json:"version"`
	Versions  []instruct.Version `json:"versions"`
	VocabSize int                `json:"vocab_size"`
	BOS       int32              `json:"bos"`
	EOS       int32              `json:"eos"`
}

// RenderRequest is a conversation in chat-API form.
type RenderRequest struct {
	SystemPrompt string             `json:"system_prompt,omitempty"`
	Messages     []instruct.Message `json:"messages"`
}

// RenderResponse is one rendered conversation.
//
// AwaitingAssistant is true when the conversation ends on a user turn, so the tokens end
// with an open instruction ready for generation.
type RenderResponse struct {
	ID                string `json:"id"`
	AwaitingAssistant bool   `json:"awaiting_assistant"`
	*instruct.Rendered
}

// BatchRenderRequest carries several conversations.
type BatchRenderRequest struct {
	Conversations []RenderRequest `json:"conversations"`
}

// BatchRenderResponse holds results in request order.
type BatchRenderResponse struct {
	Results []RenderResponse `json:"results"`
}

// DecodeRequest is a token sequence, or any slice of one.
type DecodeRequest struct {
	Tokens []int32 `json:"tokens"`
	// FromEOS decodes from the first end-of-sequence token onward. Tokens without one
	// are rejected.
	FromEOS bool `json:"from_eos,omitempty"`
}

// DecodeResponse holds decoded text.
type DecodeResponse struct {
	Text string `json:"text"`
}

// EncodeRequest is raw text to encode without any template.
type EncodeRequest struct {
	Text string `json:"text"`
}

// EncodeResponse holds token ids and their vocabulary pieces.
type EncodeResponse struct {
	Tokens []int32  `json:"tokens"`
	Pieces []string `json:"pieces"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleInfo(c *fiber.Ctx) error {
	return c.JSON(InfoResponse{
		Version:   s.templater.Version(),
		Versions:  instruct.Versions(),
		VocabSize: s.codec.VocabSize(),
		BOS:       s.codec.BosToken(),
		EOS:       s.codec.EosToken(),
	})
}

func (s *Server) handleRender(c *fiber.Ctx) error {
	var req RenderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	conv, err := req.conversation()
	if err != nil {
		return s.templateError(c, err)
	}

	out, err := s.templater.Render(conv)
	if err != nil {
		return s.templateError(c, err)
	}

	resp := RenderResponse{ID: uuid.NewString(), AwaitingAssistant: conv.EndsWithUser(), Rendered: out}
	s.logger.Debug("rendered conversation",
		"id", resp.ID,
		"turns", len(conv.Turns),
		"tokens", len(out.Tokens),
	)
	return c.JSON(resp)
}

func (s *Server) handleRenderBatch(c *fiber.Ctx) error {
	var req BatchRenderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	convs := make([]instruct.Conversation, len(req.Conversations))
	for i, r := range req.Conversations {
		conv, err := r.conversation()
		if err != nil {
			return s.templateError(c, fmt.Errorf("conversation %d: %w", i, err))
		}
		convs[i] = conv
	}

	results, err := s.templater.RenderBatch(convs, s.config.Batch)
	if err != nil {
		return s.templateError(c, err)
	}

	resp := BatchRenderResponse{Results: make([]RenderResponse, len(results))}
	for i, out := range results {
		resp.Results[i] = RenderResponse{ID: uuid.NewString(), AwaitingAssistant: convs[i].EndsWithUser(), Rendered: out}
	}
	s.logger.Debug("rendered batch", "conversations", len(results))
	return c.JSON(resp)
}

func (s *Server) handleDecode(c *fiber.Ctx) error {
	var req DecodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	decode := s.templater.DecodeToText
	if req.FromEOS {
		decode = s.templater.DecodeFromFirstEOS
	}

	text, err := decode(req.Tokens)
	if err != nil {
		return s.templateError(c, err)
	}
	return c.JSON(DecodeResponse{Text: text})
}

func (s *Server) handleEncode(c *fiber.Ctx) error {
	var req EncodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	tokens, err := s.codec.Encode(req.Text)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error(), Stage: instruct.StageCodec.String()})
	}

	pieces := make([]string, len(tokens))
	for i, id := range tokens {
		if pieces[i], err = s.codec.IDToPiece(id); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error(), Stage: instruct.StageCodec.String()})
		}
	}
	return c.JSON(EncodeResponse{Tokens: tokens, Pieces: pieces})
}

// conversation folds the explicit system prompt in front of any system messages.
func (r RenderRequest) conversation() (instruct.Conversation, error) {
	messages := r.Messages
	if r.SystemPrompt != "" {
		messages = append([]instruct.Message{{Role: "system", Content: r.SystemPrompt}}, messages...)
	}
	return instruct.FromMessages(messages)
}

// templateError maps validation failures to 400 and codec failures to 422.
func (s *Server) templateError(c *fiber.Ctx, err error) error {
	stage := instruct.StageOf(err)

	status := fiber.StatusInternalServerError
	switch stage {
	case instruct.StageValidation:
		status = fiber.StatusBadRequest
	case instruct.StageCodec:
		status = fiber.StatusUnprocessableEntity
	}

	s.logger.Debug("template error", "stage", stage.String(), "error", err)

	resp := ErrorResponse{Error: err.Error()}
	if stage != 0 {
		resp.Stage = stage.String()
	}
	return c.Status(status).JSON(resp)
}
