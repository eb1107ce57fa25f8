package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pocketledger/backend/internal/models"
)

const categoryCacheTTL = 5 * time.Minute

// CategoryService provides read-only category lookups. The per-account list
// is cached in Redis when available; the service degrades to plain DB reads
// when the client is nil.
type CategoryService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewCategoryService(db *sql.DB, redisClient *redis.Client) *CategoryService {
	return &CategoryService{
		db:    db,
		redis: redisClient,
	}
}

// GetCategories returns all categories of an account.
func (s *CategoryService) GetCategories(ctx context.Context, accountID int64) ([]models.Category, error) {
	cacheKey := fmt.Sprintf("categories:%d", accountID)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var categories []models.Category
			if err := json.Unmarshal([]byte(cached), &categories); err == nil {
				return categories, nil
			}
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, name, category_type FROM categories WHERE account_id = $1 ORDER BY name
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(categories); err == nil {
			if err := s.redis.Set(ctx, cacheKey, data, categoryCacheTTL).Err(); err != nil {
				log.Printf("[CATEGORY] Failed to cache categories for account %d: %v", accountID, err)
			}
		}
	}
	return categories, nil
}

// GetCategory returns one category by id within an account, or nil when it
// does not exist. Reads go straight to the store; approval paths must see the
// authoritative category type.
func (s *CategoryService) GetCategory(ctx context.Context, categoryID, accountID int64) (*models.Category, error) {
	var c models.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, name, category_type FROM categories WHERE id = $1 AND account_id = $2
	`, categoryID, accountID).Scan(&c.ID, &c.AccountID, &c.Name, &c.Type)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching category: %w", err)
	}
	return &c, nil
}
