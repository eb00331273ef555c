package services

import (
	"ekko/internal/database"
	"ekko/internal/models"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService() *UserService {
	return &UserService{
		db: database.GetDB(),
	}
}

// ========== 基础CRUD方法 ==========

// Create 创建用户
func (s *UserService) Create(organizationID uint, username, email, password, name string) (*models.User, error) {
	// 验证参数
	if err := s.ValidateCreateParams(username, email, password, name); err != nil {
		return nil, err
	}

	// 检查组织是否存在
	var orgCount int64
	s.db.Model(&models.Organization{}).Where("id = ?", organizationID).Count(&orgCount)
	if orgCount == 0 {
		return nil, fmt.Errorf("组织不存在")
	}

	// 检查用户名是否重复
	var usernameCount int64
	s.db.Model(&models.User{}).Where("username = ?", username).Count(&usernameCount)
	if usernameCount > 0 {
		return nil, fmt.Errorf("用户名已存在")
	}

	// 检查邮箱是否重复
	var emailCount int64
	s.db.Model(&models.User{}).Where("email = ?", email).Count(&emailCount)
	if emailCount > 0 {
		return nil, fmt.Errorf("邮箱已存在")
	}

	user := &models.User{
		OrganizationID: organizationID,
		Username:       username,
		Email:          email,
		Name:           name,
		Status:         models.UserStatusActive,
	}

	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("密码加密失败: %v", err)
	}

	err := s.db.Create(user).Error
	return user, err
}

// GetByID 根据ID获取用户
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	return &user, err
}

// GetByUsername 根据用户名获取用户
func (s *UserService) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ?", username).First(&user).Error
	return &user, err
}

// IsActive 检查用户状态
func (s *UserService) IsActive(user *models.User) bool {
	return user.Status == models.UserStatusActive
}

// VerifyLogin 验证登录凭证，成功后刷新最后登录时间
func (s *UserService) VerifyLogin(username, password string) (*models.User, error) {
	user, err := s.GetByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("用户名或密码错误")
	}

	if !user.CheckPassword(password) {
		return nil, fmt.Errorf("用户名或密码错误")
	}

	if !s.IsActive(user) {
		return nil, fmt.Errorf("用户已被禁用")
	}

	now := time.Now()
	s.db.Model(user).Update("last_login_at", now)
	user.LastLoginAt = &now

	return user, nil
}

// ========== 验证方法 ==========

// ValidateCreateParams 验证创建用户的参数
func (s *UserService) ValidateCreateParams(username, email, password, name string) error {
	if len(username) < 3 || len(username) > 50 {
		return fmt.Errorf("用户名长度必须在3-50个字符之间")
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("邮箱格式错误")
	}
	if len(password) < 8 {
		return fmt.Errorf("密码长度不能少于8个字符")
	}
	runeCount := utf8.RuneCountInString(name)
	if runeCount < 2 || runeCount > 100 {
		return fmt.Errorf("姓名长度必须在2-100个字符之间")
	}
	return nil
}
