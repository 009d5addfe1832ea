package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenizerCache mirrors the teacher's pkg/aitokens double-checked-lock
// cache of per-model tiktoken encoders.
var (
	tokenizerCache   = make(map[string]*tiktoken.Tiktoken)
	tokenizerCacheMu sync.RWMutex
)

func getTokenizer(model string) (*tiktoken.Tiktoken, error) {
	tokenizerCacheMu.RLock()
	if tkm, ok := tokenizerCache[model]; ok {
		tokenizerCacheMu.RUnlock()
		return tkm, nil
	}
	tokenizerCacheMu.RUnlock()

	tokenizerCacheMu.Lock()
	defer tokenizerCacheMu.Unlock()
	if tkm, ok := tokenizerCache[model]; ok {
		return tkm, nil
	}
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tkm, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	tokenizerCache[model] = tkm
	return tkm, nil
}

// EstimateTokens counts tokens for a system prompt plus message list, used
// to keep requests under a model's context window before calling Chat.
func EstimateTokens(model, system string, messages []Message) (int, error) {
	tkm, err := getTokenizer(model)
	if err != nil {
		return 0, err
	}
	const tokensPerMessage = 3
	n := 0
	if system != "" {
		n += tokensPerMessage + len(tkm.Encode(system, nil, nil))
	}
	for _, m := range messages {
		n += tokensPerMessage
		n += len(tkm.Encode(m.Content, nil, nil))
		n += len(tkm.Encode(m.Role, nil, nil))
	}
	n += 3
	return n, nil
}
