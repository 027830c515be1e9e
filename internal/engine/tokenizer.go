package engine

import (
	"strings"

	"thinkchat/pkg/types"
)

const (
	imStart = "<|im_start|>"
	imEnd   = "<|im_end|>"
)

// header is the generation prompt echoed at the start of every output
// sequence: a special start marker followed by the role line.
func header() Sequence {
	return Sequence{
		{ID: 0, Text: imStart, Special: true},
		{ID: 1, Text: string(types.RoleAssistant) + "\n"},
	}
}

// RenderChatML renders turns in the ChatML layout used by Qwen-family models.
func RenderChatML(turns []types.ChatTurn, addGenerationPrompt bool) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(imStart)
		b.WriteString(string(t.Role))
		b.WriteByte('\n')
		b.WriteString(t.Content)
		b.WriteString(imEnd)
		b.WriteByte('\n')
	}
	if addGenerationPrompt {
		b.WriteString(imStart)
		b.WriteString(string(types.RoleAssistant))
		b.WriteByte('\n')
	}
	return b.String()
}

// chatTokenizer is used by providers whose backend owns the real vocabulary.
// It keeps turns structured for chat endpoints and renders ChatML for raw
// completion endpoints.
type chatTokenizer struct {
	template string
}

func (t chatTokenizer) ApplyChatTemplate(turns []types.ChatTurn, opts TemplateOptions) (Inputs, error) {
	cp := make([]types.ChatTurn, len(turns))
	copy(cp, turns)
	return Inputs{Turns: cp, Prompt: RenderChatML(turns, opts.AddGenerationPrompt)}, nil
}

func (t chatTokenizer) Encode(text string) (Inputs, error) {
	return Inputs{Prompt: text, Tokens: Sequence{{ID: 0, Text: text}}}, nil
}

func (t chatTokenizer) BatchDecode(seqs []Sequence, opts DecodeOptions) ([]string, error) {
	out := make([]string, len(seqs))
	for i, seq := range seqs {
		var b strings.Builder
		for _, tok := range seq {
			if tok.Special && opts.SkipSpecialTokens {
				continue
			}
			b.WriteString(tok.Text)
		}
		out[i] = b.String()
	}
	return out, nil
}
