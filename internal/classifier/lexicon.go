package classifier

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/YOROBIZ/sentimentiq/internal/model"
)

var (
	positiveWords = wordSet(
		"excellent", "parfait", "incroyable", "merci", "adore", "adoré", "top", "super", "génial",
		"bon", "rapide", "efficace", "propre", "magnifique", "impeccable", "délicieux",
		"great", "perfect", "amazing", "thanks", "love", "fast", "clean", "awesome", "good",
	)
	negativeWords = wordSet(
		"déçu", "problème", "lent", "mauvais", "horrible", "cher", "jamais", "pire", "sale",
		"bruit", "froid", "attente", "impoli", "odeur", "retard",
		"disappointed", "problem", "slow", "bad", "awful", "expensive", "never", "worst",
		"dirty", "noise", "cold", "wait", "rude", "late",
	)
)

type theme struct {
	name  string
	terms []string
}

var themes = []theme{
	{"Hébergement", []string{"chambre", "lit", "vue", "propreté", "room", "bed"}},
	{"Restauration", []string{"repas", "manger", "restaurant", "déjeuner", "diner", "dîner", "breakfast", "dinner"}},
	{"Service Client", []string{"service", "accueil", "personnel", "staff"}},
	{"Tarification", []string{"prix", "tarif", "facture", "argent", "price", "bill"}},
}

const fallbackTheme = "Général"

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Lexicon is a word-list classifier for hospitality feedback.
type Lexicon struct{}

// NewLexicon returns the lexicon classifier.
func NewLexicon() *Lexicon {
	return &Lexicon{}
}

// Classify scores content by counting polar words.
func (l *Lexicon) Classify(ctx context.Context, content string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, Errorf("classification canceled: %v", err)
	}

	lower := strings.ToLower(content)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if len(words) == 0 {
		return Result{}, Errorf("empty content")
	}

	var pos, neg int
	for _, w := range words {
		if _, ok := positiveWords[w]; ok {
			pos++
		} else if _, ok := negativeWords[w]; ok {
			neg++
		}
	}

	res := Result{Sentiment: model.SentimentNeutral, Confidence: 0.5}
	switch score := pos - neg; {
	case score > 0:
		res.Sentiment = model.SentimentPositive
		res.Confidence = polarConfidence(pos)
	case score < 0:
		res.Sentiment = model.SentimentNegative
		res.Confidence = polarConfidence(neg)
	}

	for _, th := range themes {
		for _, term := range th.terms {
			if strings.Contains(lower, term) {
				res.KeyPhrases = append(res.KeyPhrases, th.name)
				break
			}
		}
	}
	if len(res.KeyPhrases) == 0 {
		res.KeyPhrases = []string{fallbackTheme}
	}

	return res, nil
}

func polarConfidence(count int) float64 {
	if count > 5 {
		count = 5
	}
	c := math.Min(0.70+float64(count)*0.05, 0.99)
	return math.Round(c*100) / 100
}
