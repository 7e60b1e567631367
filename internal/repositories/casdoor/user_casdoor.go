package casdoor

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/SAP-F-2025/test-attempt-service/internal/cache"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// casdoorClient is the part of the SDK client used here
type casdoorClient interface {
	GetUserByUserId(userId string) (*casdoorsdk.User, error)
}

type UserCasdoor struct {
	client casdoorClient
	cache  *cache.CacheHelper
}

func NewUserCasdoor(config CasdoorConfig, cacheManager *cache.CacheManager) repositories.UserRepository {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)

	return newUserCasdoor(client, cacheManager.User)
}

func newUserCasdoor(client casdoorClient, helper *cache.CacheHelper) *UserCasdoor {
	return &UserCasdoor{
		client: client,
		cache:  helper,
	}
}

// GetByID retrieves a user by ID
func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	cacheKey := "id:" + id
	var cached models.User
	if err := u.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	casdoorUser, err := u.client.GetUserByUserId(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
	}
	if casdoorUser == nil {
		return nil, fmt.Errorf("user not found with ID %s", id)
	}

	user := ConvertUser(casdoorUser)
	cache.SafeSet(ctx, u.cache, cacheKey, user, cache.UserCacheConfig.TTL)

	return user, nil
}

// GetByIDs retrieves users in one cache round trip; ids Casdoor cannot resolve are skipped.
func (u *UserCasdoor) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "id:" + id
	}

	cached, err := u.cache.GetMultiple(ctx, keys)
	if err != nil {
		cached = map[string]string{}
	}

	users := make([]*models.User, 0, len(ids))
	for i, id := range ids {
		if raw, ok := cached[keys[i]]; ok {
			var user models.User
			if err := json.Unmarshal([]byte(raw), &user); err == nil {
				users = append(users, &user)
				continue
			}
		}

		user, err := u.GetByID(ctx, id)
		if err == nil {
			users = append(users, user)
		}
	}

	return users, nil
}

// ConvertUser maps a Casdoor user to the internal identity
func ConvertUser(casdoorUser *casdoorsdk.User) *models.User {
	avatar := casdoorUser.Avatar
	return &models.User{
		ID:        casdoorUser.Id,
		FullName:  casdoorUser.DisplayName,
		Email:     casdoorUser.Email,
		Role:      convertRoles(casdoorUser),
		Category:  casdoorUser.Tag,
		AvatarURL: &avatar,
	}
}

func convertRoles(casdoorUser *casdoorsdk.User) models.UserRole {
	if casdoorUser.IsAdmin {
		return models.RoleAdmin
	}

	roles := make([]models.UserRole, 0, len(casdoorUser.Roles))
	for _, role := range casdoorUser.Roles {
		if role == nil {
			continue
		}
		roles = append(roles, MapRole(role.Name))
	}

	if slices.Contains(roles, models.RoleAdmin) {
		return models.RoleAdmin
	}
	return models.RoleStudent
}

// MapRole maps a Casdoor role or user type name to an internal role
func MapRole(name string) models.UserRole {
	switch strings.ToLower(name) {
	case "admin", "administrator":
		return models.RoleAdmin
	default:
		return models.RoleStudent
	}
}
