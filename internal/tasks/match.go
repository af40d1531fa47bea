package tasks

import (
	"context"
	"strings"

	"github.com/desertthunder/plexio/internal/formatter"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/services"
)

// Strategy names the matching step that resolved an item.
type Strategy string

const (
	StrategyRatingKey Strategy = "rating_key"
	StrategyIMDb      Strategy = "imdb"
	StrategyTitleYear Strategy = "title_year"
	StrategyTitle     Strategy = "title"
	StrategyNone      Strategy = "none"
)

// Strategies lists every strategy in matching order, followed by [StrategyNone].
var Strategies = []Strategy{StrategyRatingKey, StrategyIMDb, StrategyTitleYear, StrategyTitle, StrategyNone}

// FindMedia resolves a serialized item against catalog, trying in order:
//
//  1. direct fetch by rating key
//  2. search the section by title (and year) and keep the first result whose GUID contains the imdb id
//  3. search the section by title and year
//  4. search the section by title alone
//
// The first strategy that yields a result wins; the first search hit is taken without disambiguation.
// Every catalog error counts as "no result" for that strategy. If the section cannot be resolved the
// item is unmatched and no search is attempted.
func FindMedia(ctx context.Context, catalog services.Catalog, section string, item formatter.Item) (*models.Media, Strategy) {
	if item.RatingKey != "" {
		if m, err := catalog.FetchItem(ctx, string(item.RatingKey)); err == nil && m != nil {
			return m, StrategyRatingKey
		}
	}

	sec, err := catalog.Section(ctx, section)
	if err != nil || sec == nil {
		return nil, StrategyNone
	}

	year := item.YearValue()
	if id := item.ExternalID(); id != "" {
		results, err := catalog.Search(ctx, *sec, item.Title, year)
		if err == nil {
			for _, m := range results {
				if strings.Contains(m.GUID, id) {
					return &m, StrategyIMDb
				}
			}
		}
	}

	if year != 0 {
		if results, err := catalog.Search(ctx, *sec, item.Title, year); err == nil && len(results) > 0 {
			return &results[0], StrategyTitleYear
		}
	}

	if results, err := catalog.Search(ctx, *sec, item.Title, 0); err == nil && len(results) > 0 {
		return &results[0], StrategyTitle
	}
	return nil, StrategyNone
}
