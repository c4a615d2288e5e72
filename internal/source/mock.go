package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/YOROBIZ/sentimentiq/internal/clock"
)

// MockName is the source tag of demo items.
const MockName = "mock"

type template struct {
	Name    string
	Content string
}

var positiveTemplates = []template{
	{"Sophie Martin", "Un séjour absolument magnifique ! Le spa est incroyable."},
	{"Jean Dupont", "Personnel très accueillant et chambre très propre. Je recommande."},
	{"Lucas Bernard", "La vue sur la mer depuis la suite est à couper le souffle."},
	{"Emma Petit", "Petit déjeuner copieux et délicieux avec beaucoup de choix frais."},
	{"Thomas Robert", "Service de conciergerie au top, ils ont réservé nos billets rapidement."},
	{"Chloé Richard", "Le lit est d'un confort absolu, j'ai dormi comme un bébé."},
	{"Inès Durand", "Tout était parfait, de l'arrivée au départ. Une expérience 5 étoiles."},
	{"Marie Rousseau", "Le restaurant de l'hôtel est excellent. Service impeccable."},
	{"Pierre Bonnet", "Piscine magnifique avec une eau toujours propre."},
	{"David Perrin", "Check-in très fluide, on nous a donné nos clés en 2 minutes."},
}

var neutralTemplates = []template{
	{"Camille Laurent", "Hôtel correct, sans plus. Le prix est un peu élevé pour la prestation."},
	{"Nicolas Michel", "La chambre était prête mais un peu petite à mon goût."},
	{"Léa Garcia", "Petit déjeuner standard, rien d'exceptionnel mais fait le job."},
	{"Kevin Fournier", "Ascenseur un peu lent, sinon ça va."},
}

var negativeTemplates = []template{
	{"Paul Morel", "Impossible de dormir à cause du bruit de la rue. Isolation zéro."},
	{"Céline Girardin", "La salle de bain était sale, il y avait des cheveux dans la baignoire."},
	{"Romain Bonnet", "Le room service est arrivé avec 1h de retard et c'était froid."},
	{"Maxime Dubois", "Le Wifi ne marchait pas dans la chambre, impossible de travailler."},
	{"Elodie Blanc", "Problème de paiement, on m'a débité deux fois ! Remboursez-moi."},
}

// Mock injects one demo comment per fetch.
type Mock struct {
	clock clock.Clock
	mu    sync.Mutex
	rng   *rand.Rand
}

// NewMock creates a demo connector.
func NewMock() *Mock {
	return &Mock{clock: clock.System{}, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// WithClock sets the clock used for external ids.
func (m *Mock) WithClock(c clock.Clock) *Mock {
	m.clock = c
	return m
}

// WithSeed makes template selection deterministic.
func (m *Mock) WithSeed(seed int64) *Mock {
	m.mu.Lock()
	m.rng = rand.New(rand.NewSource(seed))
	m.mu.Unlock()
	return m
}

// Name returns the source tag.
func (m *Mock) Name() string {
	return MockName
}

// Fetch returns a single item with a fresh mock_<unix-nanos> id.
func (m *Mock) Fetch(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	m.mu.Lock()
	pool := [][]template{positiveTemplates, neutralTemplates, negativeTemplates}[m.rng.Intn(3)]
	tpl := pool[m.rng.Intn(len(pool))]
	m.mu.Unlock()

	id := fmt.Sprintf("mock_%d", now.UnixNano())
	raw, err := json.Marshal(map[string]interface{}{
		"id":            id,
		"text":          tpl.Content,
		"from":          map[string]string{"name": "Mock User"},
		"permalink_url": "https://mock.link",
	})
	if err != nil {
		return nil, err
	}

	return []Item{{
		ExternalID:   id,
		CustomerName: "Mock User",
		Content:      tpl.Content,
		Permalink:    "https://mock.link",
		Raw:          raw,
	}}, nil
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// DemoDataset returns total demo items, about 75% positive, 15% neutral and
// 10% negative, with short anonymized customer names ("Sophie M.").
func DemoDataset(total int, seed int64) []Item {
	rng := rand.New(rand.NewSource(seed))
	positives := total * 75 / 100
	neutrals := total * 15 / 100

	items := make([]Item, 0, total)
	for i := 0; i < total; i++ {
		pool := negativeTemplates
		switch {
		case i < positives:
			pool = positiveTemplates
		case i < positives+neutrals:
			pool = neutralTemplates
		}
		tpl := pool[rng.Intn(len(pool))]
		first, _, _ := strings.Cut(tpl.Name, " ")
		items = append(items, Item{
			ExternalID:   fmt.Sprintf("demo_%d_%03d", seed, i),
			CustomerName: fmt.Sprintf("%s %c.", first, 'A'+rune(rng.Intn(26))),
			Content:      tpl.Content,
		})
	}
	return items
}
