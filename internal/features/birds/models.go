// Package birds управляет каталогом видов птиц, их карточками
// и распознаванием по фото и звуку.
// models.go описывает структуры данных каталога.
package birds

import (
	"time"

	json "github.com/goccy/go-json"
)

// Уровни редкости
const (
	RarityS = "S"
	RarityA = "A"
	RarityB = "B"
	RarityC = "C"
)

// Rarities: все уровни от самого редкого к самому частому.
var Rarities = []string{RarityS, RarityA, RarityB, RarityC}

// ValidRarity проверяет код редкости.
func ValidRarity(r string) bool {
	switch r {
	case RarityS, RarityA, RarityB, RarityC:
		return true
	}
	return false
}

// Статусы охраны (МСОП)
var ConservationStatuses = map[string]string{
	"EX": "Extinct",
	"EW": "Extinct in the Wild",
	"CR": "Critically Endangered",
	"EN": "Endangered",
	"VU": "Vulnerable",
	"NT": "Near Threatened",
	"LC": "Least Concern",
	"DD": "Data Deficient",
}

// Bird: вид птицы в каталоге.
type Bird struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	ScientificName     string    `json:"scientific_name"`
	Description        string    `json:"description"`
	ImageURL           string    `json:"image_url"`
	Rarity             string    `json:"rarity"`
	ConservationStatus string    `json:"conservation_status"`
	WeightRange        string    `json:"weight_range"`
	WingspanRange      string    `json:"wingspan_range"`
	LengthRange        string    `json:"length_range"`
	Kingdom            string    `json:"kingdom"`
	Phylum             string    `json:"phylum"`
	BirdClass          string    `json:"bird_class"`
	Order              string    `json:"order"`
	Family             string    `json:"family"`
	Habitat            string    `json:"habitat"`
	Behavior           string    `json:"behavior"`
	FeedingHabits      string    `json:"feeding_habits"`
	BreedingInfo       string    `json:"breeding_info"`
	MigrationPattern   string    `json:"migration_pattern"`
	SoundDescription   string    `json:"sound_description"`
	RangeMapURL        string    `json:"range_map_url"`
	GlobalDistribution string    `json:"global_distribution"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Summary: краткая карточка птицы для списков (коллекция, наблюдения, лента).
type Summary struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	ScientificName     string `json:"scientific_name"`
	ImageURL           string `json:"image_url"`
	Rarity             string `json:"rarity"`
	ConservationStatus string `json:"conservation_status"`
}

// Summary возвращает краткую карточку.
func (b *Bird) Summary() Summary {
	return Summary{
		ID:                 b.ID,
		Name:               b.Name,
		ScientificName:     b.ScientificName,
		ImageURL:           b.ImageURL,
		Rarity:             b.Rarity,
		ConservationStatus: b.ConservationStatus,
	}
}

// NeedsEnrichment сообщает, что у карточки нет описания или среды обитания.
func (b *Bird) NeedsEnrichment() bool {
	return b.Description == "" || b.Habitat == ""
}

// Image: фотография вида.
type Image struct {
	ID        int64  `json:"id"`
	ImageURL  string `json:"image_url"`
	IsPrimary bool   `json:"is_primary"`
}

// Sound: запись голоса.
type Sound struct {
	ID          int64  `json:"id"`
	SoundURL    string `json:"sound_url"`
	SoundType   string `json:"sound_type"`
	Description string `json:"description"`
}

// Similar: похожий вид.
type Similar struct {
	ID              int64   `json:"id"`
	SimilarityScore float64 `json:"similarity_score"`
	Bird            Summary `json:"similar_to_details"`
}

// Details: полная карточка для GET /api/birds/details/{id}.
type Details struct {
	Bird
	Images       []Image   `json:"images"`
	Sounds       []Sound   `json:"sounds"`
	SimilarBirds []Similar `json:"similar_birds"`
}

// Category: тематическая категория птиц.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Identification: результат распознавания, сохранённый для пользователя.
type Identification struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"-"`
	BirdID            *int64          `json:"bird_id"`
	Bird              *Summary        `json:"bird,omitempty"`
	ImageURL          string          `json:"image_url"`
	SoundURL          string          `json:"sound_url"`
	IdentifiedSpecies string          `json:"identified_species"`
	ScientificName    string          `json:"scientific_name"`
	ConfidenceLevel   float64         `json:"confidence_level"`
	Provider          string          `json:"provider"`
	AIResponse        json.RawMessage `json:"ai_response"`
	Latitude          *float64        `json:"latitude"`
	Longitude         *float64        `json:"longitude"`
	LocationName      string          `json:"location_name"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Сортировки каталога
const (
	OrderName   = "name"
	OrderRarity = "rarity"
	OrderNewest = "-created_at"
)

// ListFilter: параметры поиска по каталогу.
type ListFilter struct {
	Query  string
	Rarity string
	Region string // подстрока global_distribution
	Order  string // OrderName, OrderRarity или OrderNewest (по умолчанию)
}

// Upload: файл из multipart-запроса.
type Upload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// IdentifyRequest: POST /api/birds/identify.
// Нужен хотя бы один файл; если есть оба, распознаётся фото.
type IdentifyRequest struct {
	Image        *Upload
	Sound        *Upload
	Latitude     *float64
	Longitude    *float64
	LocationName string
}

// EnhanceResponse: ответ POST /api/birds/enhance.
type EnhanceResponse struct {
	EnhancedImageURL string `json:"enhanced_image_url"`
}
