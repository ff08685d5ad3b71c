package translate

import "context"

// Translator converts sentences into a target language. Implementations
// must preserve order and length: result[i] is the translation of
// sentences[i]. A call may fail as a whole; callers decide how to recover.
type Translator interface {
	TranslateBatch(ctx context.Context, sentences []string, targetLang string) ([]string, error)
}
