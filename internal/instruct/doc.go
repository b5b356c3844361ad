// Package instruct renders multi-turn chat conversations into Mistral instruct prompts.
//
// A Templater turns a Conversation (an optional system prompt plus alternating
// user/assistant turns) into two views of one render trace:
//   - Text: the concatenated vocabulary pieces, e.g. "<s>▁[INST]▁a▁[/INST]▁b</s>"
//   - Tokens: the matching token IDs, e.g. [1 733 16289 28793 264 733 28748 16289 28793 287 2]
//
// Grammar (one render pass, strictly left to right):
//
//	<s>                          once, at the start
//	[INST] content [/INST]       per user turn
//	content </s>                 per assistant turn
//
// The system prompt is merged into the first user turn only, as system + "\n\n" + text.
// A conversation that ends on a user turn has no trailing </s>.
//
// Template versions:
//   - V1: [INST] and [/INST] are plain text encoded together with the user content
//   - V2: [INST] and [/INST] are single control tokens of the vocabulary
//
// Example usage:
//
//	tmpl, err := instruct.New(tokenizer.ExampleMistralV1(), instruct.V1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	conv, err := instruct.NewConversation("You are helpful.",
//	    instruct.User("Hi!"),
//	    instruct.Assistant("Hello."),
//	    instruct.User("How are you?"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := tmpl.Render(conv)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out.Text, out.Tokens)
//
// A Templater is immutable after New and safe for concurrent use when its codec is.
package instruct
