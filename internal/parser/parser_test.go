package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "  Service   excellent\n\n merci ", "Service excellent merci"},
		{"inline markup", "Service <b>excellent</b>", "Service excellent"},
		{"paragraphs", "<p>Chambre sale</p><p>Personnel impoli</p>", "Chambre sale Personnel impoli"},
		{"line breaks", "Bruit<br>toute la nuit", "Bruit toute la nuit"},
		{"scripts dropped", "<html><head><style>p{}</style></head><body><script>alert(1)</script>Parfait</body></html>", "Parfait"},
		{"comparison is not markup", "note 3 < 5 sur 5", "note 3 < 5 sur 5"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestStripQuotedReply(t *testing.T) {
	body := "Le petit déjeuner était froid.\n\nLe lun. 4 mars 2024, Hôtel a écrit :\n> Merci pour votre séjour"
	assert.Equal(t, "Le petit déjeuner était froid.", StripQuotedReply(body))

	body = "Great stay\n> quoted line\nsee you soon"
	assert.Equal(t, "Great stay\nsee you soon", StripQuotedReply(body))

	body = "Loved it\nOn Mon, 4 Mar 2024 at 10:00, Hotel <info@hotel.com> wrote:\nHow was your stay?"
	assert.Equal(t, "Loved it", StripQuotedReply(body))
}

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent("Service excellent"))
	assert.NoError(t, ValidateContent(strings.Repeat("é", MaxContentLength)))

	assert.ErrorIs(t, ValidateContent("Bof"), ErrContentTooShort)
	assert.ErrorIs(t, ValidateContent(""), ErrContentTooShort)
	// rune count, not bytes: nine accented letters are still too short
	assert.ErrorIs(t, ValidateContent(strings.Repeat("é", 9)), ErrContentTooShort)
	assert.ErrorIs(t, ValidateContent(strings.Repeat("a", MaxContentLength+1)), ErrContentTooLong)
}

func TestCustomerName(t *testing.T) {
	assert.Equal(t, "Sophie Martin", CustomerName(`"Sophie Martin" <sophie@example.com>`, "Email User"))
	assert.Equal(t, "Sophie Martin", CustomerName("Sophie Martin <sophie@example.com>", "Email User"))
	assert.Equal(t, "jean.dupont", CustomerName("jean.dupont@example.com", "Email User"))
	assert.Equal(t, "Email User", CustomerName("", "Email User"))
	assert.Equal(t, "not an address", CustomerName("not an address", "Email User"))
}
