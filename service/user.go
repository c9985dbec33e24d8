package service

import (
	"context"
	"errors"
	"strings"

	"wallet/config"
	"wallet/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	// ErrUserLocked 账号已锁定
	ErrUserLocked = errors.New("账号已锁定")
)

// RegisterInput 注册参数
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// UserService 用户注册、登录与注销
type UserService struct {
	db      *gorm.DB
	presets []config.CategoryPreset
}

// NewUserService presets 为注册时初始化的预设分类
func NewUserService(db *gorm.DB, presets []config.CategoryPreset) *UserService {
	return &UserService{db: db, presets: presets}
}

// Register 创建用户并初始化预设分类，在同一事务中完成
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hashed),
		Status:   models.UserStatusActive,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("username = ?", in.Username).Count(&n).Error; err != nil {
			return persistErr("查询用户失败", err)
		}
		if n > 0 {
			return NewValidationError("username", "用户名已存在")
		}
		if err := tx.Model(&models.User{}).Where("email = ?", in.Email).Count(&n).Error; err != nil {
			return persistErr("查询用户失败", err)
		}
		if n > 0 {
			return NewValidationError("email", "邮箱已被注册")
		}

		if err := tx.Create(&user).Error; err != nil {
			return persistErr("创建用户失败", err)
		}
		return SeedPresets(tx, user.ID, s.presets)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate 校验用户名（或邮箱）和密码
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	var user models.User
	login = strings.TrimSpace(login)
	if err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, strings.ToLower(login)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, persistErr("查询用户失败", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, ErrUserLocked
	}
	return &user, nil
}

// Get 获取用户
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "查询用户失败")
	}
	return &user, nil
}

// ChangePassword 修改密码
func (s *UserService) ChangePassword(ctx context.Context, id uint, oldPassword, newPassword string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return NewValidationError("old_password", "原密码错误")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return persistErr("更新密码失败", s.db.WithContext(ctx).Model(user).Update("password", string(hashed)).Error)
}

// Delete 注销用户，级联删除其全部数据
func (s *UserService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			return notFoundOr(err, "查询用户失败")
		}
		for _, m := range []interface{}{
			&models.Transaction{},
			&models.Budget{},
			&models.ReportTemplate{},
			&models.Category{},
			&models.Account{},
		} {
			if err := tx.Where("user_id = ?", id).Delete(m).Error; err != nil {
				return persistErr("删除用户数据失败", err)
			}
		}
		if err := tx.Delete(&user).Error; err != nil {
			return persistErr("删除用户失败", err)
		}
		return nil
	})
}
