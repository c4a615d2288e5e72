package model

import "time"

// Sentiment labels produced by the classifier.
const (
	SentimentPositive = "POSITIVE"
	SentimentNeutral  = "NEUTRAL"
	SentimentNegative = "NEGATIVE"
)

// Feedback is a finalized classification result
type Feedback struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	StagedItemID *uint     `json:"staged_item_id,omitempty" gorm:"index"`
	CustomerName string    `json:"customer_name" gorm:"type:varchar(255)"`
	Content      string    `json:"content" gorm:"type:text"`
	Sentiment    string    `json:"sentiment" gorm:"type:varchar(16);not null;index"`
	Confidence   float64   `json:"confidence"`
	KeyPhrases   []string  `json:"key_phrases" gorm:"type:text;serializer:json"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name for Feedback
func (Feedback) TableName() string {
	return "feedbacks"
}

// Score maps the sentiment onto a 0..100 scale.
func (f Feedback) Score() int {
	switch f.Sentiment {
	case SentimentPositive:
		return 100
	case SentimentNeutral:
		return 50
	default:
		return 0
	}
}
