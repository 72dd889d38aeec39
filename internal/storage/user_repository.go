package storage

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"social-go/internal/models"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.User, error)
	// UpdateFields writes only the named columns of values onto the row with the given id.
	UpdateFields(ctx context.Context, id string, values *models.User, columns ...string) error
	SetAdmin(ctx context.Context, email string, isAdmin bool) (int64, error)
	Search(ctx context.Context, query string, excludeID string, limit int) ([]models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, id string) error
	GetDB() *gorm.DB
}

// gormUserRepository implements UserRepository using GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create creates a new user record in the database.
func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by their ID.
func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err // Handles gorm.ErrRecordNotFound as well
	}
	return &user, nil
}

// GetByIDForUpdate 在事务中以 SELECT ... FOR UPDATE 读取用户 (sqlite 驱动会忽略行锁)。
func (r *gormUserRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email. Emails are stored lower-case.
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDs fetches every user in ids. Missing ids are simply absent from the result.
func (r *gormUserRepository) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&users).Error
	return users, err
}

// UpdateFields goes through the struct so that serializer columns (interests)
// are encoded. Returns gorm.ErrRecordNotFound when no row matched.
func (r *gormUserRepository) UpdateFields(ctx context.Context, id string, values *models.User, columns ...string) error {
	if id == "" || len(columns) == 0 {
		return gorm.ErrMissingWhereClause
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Select(columns).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetAdmin flips the admin flag for the user with the given email.
func (r *gormUserRepository) SetAdmin(ctx context.Context, email string, isAdmin bool) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Update("is_admin", isAdmin)
	return res.RowsAffected, res.Error
}

// Search 在姓名、地点和兴趣上做大小写不敏感的模糊匹配，并排除当前用户。
// Interests is a JSON text column, so a substring match on it matches any tag.
func (r *gormUserRepository) Search(ctx context.Context, query string, excludeID string, limit int) ([]models.User, error) {
	var users []models.User
	term := strings.ToLower(strings.TrimSpace(query))
	searchTerm := likePattern(term)

	match := r.db.Where("LOWER(name) LIKE ? ESCAPE '\\'", searchTerm).
		Or("LOWER(location) LIKE ? ESCAPE '\\'", searchTerm)
	// 去掉 JSON 标点, 否则 `"` 或 `,` 会匹配到数组本身
	if tagTerm := stripJSONPunct(term); tagTerm != "" {
		match = match.Or("LOWER(interests) LIKE ? ESCAPE '\\'", likePattern(tagTerm))
	}

	q := r.db.WithContext(ctx).
		Where(match).
		Where("id <> ?", excludeID).
		Order("name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// List returns every user ordered by name.
func (r *gormUserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("name ASC").Find(&users).Error
	return users, err
}

// Delete hard-deletes the user row.
func (r *gormUserRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetDB returns the underlying gorm.DB instance
func (r *gormUserRepository) GetDB() *gorm.DB {
	return r.db
}

// stripJSONPunct drops the characters that delimit the interests JSON array.
func stripJSONPunct(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`"[],\`, r) {
			return -1
		}
		return r
	}, s)
}

// likePattern wraps s in % after escaping LIKE metacharacters.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
