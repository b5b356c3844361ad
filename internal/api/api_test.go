package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/born-ml/instruct/internal/instruct"
	"github.com/born-ml/instruct/internal/logger"
	"github.com/born-ml/instruct/internal/parallel"
	"github.com/born-ml/instruct/internal/tokenizer"
)

func doJSON(server *Server, method, path string, body any) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.app.Test(req)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	data, err := io.ReadAll(resp.Body)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return resp, data
}

var _ = Describe("Server", func() {
	var server *Server

	BeforeEach(func() {
		templater, err := instruct.New(tokenizer.ExampleMistralV1(), instruct.V1)
		Expect(err).NotTo(HaveOccurred())

		server = NewServer(
			Config{ListenAddr: ":0", Batch: parallel.Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1}},
			templater,
			logger.Nop(),
		)
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp, body := doJSON(server, http.MethodGet, "/ping", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(string(body)).To(Equal(`"pong"`))
		})
	})

	Describe("GET /v1/info", func() {
		It("describes the vocabulary and template", func() {
			resp, body := doJSON(server, http.MethodGet, "/v1/info", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(body).To(MatchJSON(`{"version":"v1","versions":["v1","v2"],"vocab_size":32000,"bos":1,"eos":2}`))
		})
	})

	Describe("POST /v1/render", func() {
		It("renders a conversation with a system prompt", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/render", RenderRequest{
				SystemPrompt: "SYSTEM",
				Messages:     []instruct.Message{{Role: "user", Content: "a"}},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out struct {
				ID                string  `json:"id"`
				AwaitingAssistant bool    `json:"awaiting_assistant"`
				Version           string  `json:"version"`
				Text              string  `json:"text"`
				Tokens            []int32 `json:"tokens"`
				Segments          []struct {
					Kind string `json:"kind"`
					Turn int    `json:"turn"`
				} `json:"segments"`
			}
			Expect(json.Unmarshal(body, &out)).To(Succeed())

			_, err := uuid.Parse(out.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Version).To(Equal("v1"))
			Expect(out.AwaitingAssistant).To(BeTrue())
			Expect(out.Text).To(Equal("<s>▁[INST]▁SYSTEM<0x0A><0x0A>a▁[/INST]"))
			Expect(out.Tokens).To(Equal([]int32{1, 733, 16289, 28793, 17121, 22526, 13, 13, 28708, 733, 28748, 16289, 28793}))
			Expect(out.Segments).To(HaveLen(2))
			Expect(out.Segments[0].Kind).To(Equal("begin_sequence"))
			Expect(out.Segments[1].Kind).To(Equal("instruction"))
			Expect(out.Segments[1].Turn).To(Equal(0))
		})

		It("accepts system messages inside the message list", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/render", RenderRequest{
				Messages: []instruct.Message{
					{Role: "system", Content: "SYSTEM"},
					{Role: "user", Content: "a"},
					{Role: "assistant", Content: "b"},
				},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"text":"<s>▁[INST]▁SYSTEM<0x0A><0x0A>a▁[/INST]▁b</s>"`))
			Expect(string(body)).To(ContainSubstring(`"awaiting_assistant":false`))
		})

		It("returns 400 with the validation stage for a malformed conversation", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/render", RenderRequest{
				Messages: []instruct.Message{{Role: "assistant", Content: "b"}},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var errResp ErrorResponse
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Stage).To(Equal("validation"))
			Expect(errResp.Error).To(ContainSubstring("first turn must be a user turn"))
		})

		It("returns 400 for unknown roles", func() {
			resp, _ := doJSON(server, http.MethodPost, "/v1/render", RenderRequest{
				Messages: []instruct.Message{{Role: "tool", Content: "x"}},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 for a malformed body", func() {
			req, err := http.NewRequest(http.MethodPost, "/v1/render", bytes.NewReader([]byte("{")))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("POST /v1/render/batch", func() {
		It("renders every conversation in order", func() {
			convs := make([]RenderRequest, 5)
			for i := range convs {
				convs[i] = RenderRequest{Messages: []instruct.Message{
					{Role: "user", Content: "a"},
					{Role: "assistant", Content: "b"},
				}}
			}
			convs[2].SystemPrompt = "SYSTEM"

			resp, body := doJSON(server, http.MethodPost, "/v1/render/batch", BatchRenderRequest{Conversations: convs})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out struct {
				Results []struct {
					ID   string `json:"id"`
					Text string `json:"text"`
				} `json:"results"`
			}
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Results).To(HaveLen(5))
			Expect(out.Results[0].Text).To(Equal("<s>▁[INST]▁a▁[/INST]▁b</s>"))
			Expect(out.Results[2].Text).To(HavePrefix("<s>▁[INST]▁SYSTEM"))
			Expect(out.Results[0].ID).NotTo(Equal(out.Results[1].ID))
		})

		It("fails the whole batch on one bad conversation", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/render/batch", BatchRenderRequest{
				Conversations: []RenderRequest{
					{Messages: []instruct.Message{{Role: "user", Content: "a"}}},
					{Messages: []instruct.Message{{Role: "user", Content: "a"}, {Role: "user", Content: "b"}}},
				},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var errResp ErrorResponse
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Stage).To(Equal("validation"))
			Expect(errResp.Error).To(HavePrefix("conversation 1: "))
			Expect(errResp.Error).To(ContainSubstring("same role"))
		})

		It("names the lowest failing conversation", func() {
			ok := RenderRequest{Messages: []instruct.Message{{Role: "user", Content: "a"}}}
			resp, body := doJSON(server, http.MethodPost, "/v1/render/batch", BatchRenderRequest{
				Conversations: []RenderRequest{
					ok, ok, ok,
					{Messages: []instruct.Message{{Role: "assistant", Content: "b"}}},
					{Messages: []instruct.Message{{Role: "tool", Content: "x"}}},
				},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var errResp ErrorResponse
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Error).To(Equal("conversation 3: validation error at turn 0: first turn must be a user turn"))
		})
	})

	Describe("POST /v1/decode", func() {
		full := []int32{
			1, 733, 16289, 28793, 17121, 22526, 13, 13, 28708, 733, 28748, 16289, 28793, 287, 2,
			733, 16289, 28793, 277, 733, 28748, 16289, 28793, 281, 2,
		}

		It("decodes a full sequence", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/decode", DecodeRequest{Tokens: full[:13]})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(body).To(MatchJSON(`{"text":"[INST] SYSTEM\n\na [/INST]"}`))
		})

		It("decodes from the first end of sequence", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/decode", DecodeRequest{Tokens: full, FromEOS: true})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(body).To(MatchJSON(`{"text":"[INST] c [/INST] d"}`))
		})

		It("rejects from_eos when there is no end of sequence", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/decode", DecodeRequest{Tokens: full[:13], FromEOS: true})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var errResp ErrorResponse
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Stage).To(Equal("validation"))
			Expect(errResp.Error).To(ContainSubstring("no end-of-sequence id"))
		})

		It("returns 422 with the codec stage for out-of-range ids", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/decode", DecodeRequest{Tokens: []int32{1, 99999}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))

			var errResp ErrorResponse
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Stage).To(Equal("codec"))
			Expect(errResp.Error).To(ContainSubstring("out of range"))
		})
	})

	Describe("POST /v1/encode", func() {
		It("returns ids and pieces without template markers", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/encode", EncodeRequest{Text: "[INST]"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(body).To(MatchJSON(`{"tokens":[733,16289,28793],"pieces":["▁[","INST","]"]}`))
		})
	})
})
