// Package explore собирает раздел «Обзор»: подборку статей и выборки из каталога.
package explore

import (
	"context"
	"strings"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/features/birds"
	"serotonyl.ru/birdwatch/internal/features/discover"
)

// Фильтры поиска
const (
	FilterRarity = "rarity"
	FilterRegion = "region"
)

// FeederKeyword: признак птиц, которые прилетают к кормушкам.
const FeederKeyword = "feeder"

// SearchRequest: параметры GET /search.
type SearchRequest struct {
	Query  string
	Filter string
	Value  string
}

// Service отдаёт выборки раздела «Обзор».
type Service struct {
	catalog  *birds.Repository
	articles *discover.Repository
}

// NewService создаёт сервис.
func NewService(catalog *birds.Repository, articles *discover.Repository) *Service {
	return &Service{catalog: catalog, articles: articles}
}

// Featured возвращает статьи о миграции и кормушках, новые первыми.
func (s *Service) Featured(ctx context.Context) ([]*discover.Article, error) {
	return s.articles.Articles(ctx, discover.CategoryMigration, discover.CategoryFeederBirds)
}

// Search ищет птиц по имени с необязательным фильтром по редкости или региону.
// Фильтр применяется, только если заданы и тип, и значение.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]*birds.Bird, error) {
	f := birds.ListFilter{Query: req.Query, Order: birds.OrderName}

	value := strings.TrimSpace(req.Value)
	if value != "" {
		switch strings.ToLower(strings.TrimSpace(req.Filter)) {
		case FilterRarity:
			f.Rarity = strings.ToUpper(value)
			if !birds.ValidRarity(f.Rarity) {
				return nil, common.InvalidField("value", "rarity must be one of S, A, B, C")
			}
		case FilterRegion:
			f.Region = value
		case "":
		default:
			return nil, common.InvalidField("filter", "must be rarity or region")
		}
	}
	return s.catalog.List(ctx, f)
}

// FeederBirds возвращает птиц кормушек по имени.
func (s *Service) FeederBirds(ctx context.Context) ([]*birds.Bird, error) {
	return s.catalog.WithBehavior(ctx, FeederKeyword)
}

// ByCategory возвращает птиц категории. Пустая категория даёт пустой список.
func (s *Service) ByCategory(ctx context.Context, category string) ([]*birds.Bird, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return []*birds.Bird{}, nil
	}
	return s.catalog.ByCategory(ctx, category)
}
