package service

import (
	"fmt"
	"math"

	"story-server/internal/models"
)

// Границы пагинации для разных списков.
const (
	HistoryDefaultLimit = 10
	HistoryMaxLimit     = 50
	UsersDefaultLimit   = 20
	UsersMaxLimit       = 100
	LogsDefaultLimit    = 50
	LogsMaxLimit        = 200
)

// checkLimit проверяет limit. Ноль означает значение по умолчанию.
func checkLimit(limit, def, max int) (int, error) {
	if limit == 0 {
		return def, nil
	}
	if limit < 1 || limit > max {
		return 0, models.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", max))
	}
	return limit, nil
}

// pageOffset переводит номер страницы (с 1) в смещение. limit уже проверен checkLimit.
// page*limit должен помещаться в int: его же считает newPage.
func pageOffset(page, limit int) (int, error) {
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return 0, models.NewValidationError("page", "must be at least 1")
	}
	if page > math.MaxInt/limit {
		return 0, models.NewValidationError("page", fmt.Sprintf("must be at most %d", math.MaxInt/limit))
	}
	return (page - 1) * limit, nil
}

func newPage(data interface{}, total, page, limit int) *models.PaginatedResponse {
	if page == 0 {
		page = 1
	}
	return &models.PaginatedResponse{
		Data:        data,
		Total:       total,
		Page:        page,
		Limit:       limit,
		HasNextPage: page*limit < total,
	}
}
