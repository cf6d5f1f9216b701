package usecase

import (
	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
)

// MatchEntity resolves an observed context to at most one enabled focus entity.
//
// A domain entity matching ctx.Domain always wins over an app entity matching
// ctx.AppID. When several enabled entities share a match value, the earliest
// created one wins, then the lowest id.
func MatchEntity(entities []domain.FocusEntity, ctx domain.ForegroundContext) (string, bool) {
	if ctx.Domain != "" {
		if e, ok := firstMatch(entities, domain.EntityTypeDomain, ctx.Domain); ok {
			return e.ID, true
		}
	}
	if ctx.AppID != "" {
		if e, ok := firstMatch(entities, domain.EntityTypeApp, ctx.AppID); ok {
			return e.ID, true
		}
	}
	return "", false
}

func firstMatch(entities []domain.FocusEntity, typ domain.EntityType, value string) (domain.FocusEntity, bool) {
	var best domain.FocusEntity
	found := false
	for _, e := range entities {
		if !e.IsEnabled || e.Type != typ || e.MatchValue != value {
			continue
		}
		if !found || precedes(e, best) {
			best = e
			found = true
		}
	}
	return best, found
}

func precedes(a, b domain.FocusEntity) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// EnabledEntities filters out disabled entities.
func EnabledEntities(entities []domain.FocusEntity) []domain.FocusEntity {
	enabled := make([]domain.FocusEntity, 0, len(entities))
	for _, e := range entities {
		if e.IsEnabled {
			enabled = append(enabled, e)
		}
	}
	return enabled
}
