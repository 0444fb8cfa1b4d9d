// Package auth 令牌认证与成员关系判定。
// 所有API操作携带不透明bearer令牌；授权判定先于任何副作用。
package auth

import (
	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/repository"
)

type AuthService struct {
	users  *repository.UserRepository
	groups *repository.GroupRepository
}

func NewAuthService(users *repository.UserRepository, groups *repository.GroupRepository) *AuthService {
	return &AuthService{users: users, groups: groups}
}

// Authenticate 令牌 → 用户。缺失、未知或无效令牌返回 Unauthenticated。
func (s *AuthService) Authenticate(token string) (*model.User, *model.APIError) {
	if token == "" {
		return nil, model.ErrUnauthenticated()
	}
	user, err := s.users.FindByToken(token)
	if err != nil {
		return nil, model.ErrStore(err, "user lookup failed")
	}
	if user == nil || !user.Valid {
		return nil, model.ErrUnauthenticated()
	}
	return user, nil
}

// UserInGroup 用户是否为组成员
func (s *AuthService) UserInGroup(userID, groupID string) (bool, *model.APIError) {
	in, err := s.groups.UserInGroup(userID, groupID)
	if err != nil {
		return false, model.ErrStore(err, "membership lookup failed")
	}
	return in, nil
}

// RequireMembership 非管理员必须是组成员
func (s *AuthService) RequireMembership(user *model.User, groupID string) *model.APIError {
	if user.Admin {
		return nil
	}
	in, err := s.UserInGroup(user.ID, groupID)
	if err != nil {
		return err
	}
	if !in {
		return model.ErrForbidden()
	}
	return nil
}

// RequireAdmin 仅管理员
func (s *AuthService) RequireAdmin(user *model.User) *model.APIError {
	if !user.Admin {
		return model.ErrForbidden()
	}
	return nil
}
