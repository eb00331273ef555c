package services

import (
	"ekko/internal/database"
	"ekko/internal/models"
	"fmt"
	"unicode/utf8"

	"gorm.io/gorm"
)

type OrganizationService struct {
	db *gorm.DB
}

func NewOrganizationService() *OrganizationService {
	return &OrganizationService{
		db: database.GetDB(),
	}
}

// ========== 基础CRUD方法 ==========

// Create 创建组织
func (s *OrganizationService) Create(code, name string) (*models.Organization, error) {
	// 验证参数
	if err := s.ValidateCreateParams(code, name); err != nil {
		return nil, err
	}

	// 检查组织代码是否重复
	var count int64
	s.db.Model(&models.Organization{}).Where("code = ?", code).Count(&count)
	if count > 0 {
		return nil, fmt.Errorf("组织代码已存在")
	}

	org := &models.Organization{
		Code:   code,
		Name:   name,
		Status: models.OrganizationStatusActive,
	}

	err := s.db.Create(org).Error
	return org, err
}

// GetByID 根据ID获取组织
func (s *OrganizationService) GetByID(id uint) (*models.Organization, error) {
	var org models.Organization
	err := s.db.First(&org, id).Error
	return &org, err
}

// GetWithPage 分页获取组织
func (s *OrganizationService) GetWithPage(status string, page, pageSize int) ([]*models.Organization, int64, error) {
	var orgs []*models.Organization
	var total int64

	query := s.db.Model(&models.Organization{})

	// 按状态筛选
	if status != "" {
		query = query.Where("status = ?", status)
	}

	// 计算总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Find(&orgs).Error
	if err != nil {
		return nil, 0, err
	}

	return orgs, total, nil
}

// Update 更新组织
func (s *OrganizationService) Update(id uint, name, status string) (*models.Organization, error) {
	if !s.ValidateName(name) {
		return nil, fmt.Errorf("组织名称长度必须在2-100个字符之间")
	}
	if status != models.OrganizationStatusActive && status != models.OrganizationStatusInactive {
		return nil, fmt.Errorf("状态只能是active或inactive")
	}

	var org models.Organization
	err := s.db.First(&org, id).Error
	if err != nil {
		return nil, err
	}

	org.Name = name
	org.Status = status

	err = s.db.Save(&org).Error
	return &org, err
}

// ========== 验证方法 ==========

// ValidateCode 验证组织代码
func (s *OrganizationService) ValidateCode(code string) bool {
	if len(code) < 2 || len(code) > 50 {
		return false
	}
	// 只允许字母、数字和下划线
	for _, r := range code {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_') {
			return false
		}
	}
	return true
}

// ValidateName 验证组织名称
func (s *OrganizationService) ValidateName(name string) bool {
	runeCount := utf8.RuneCountInString(name)
	return runeCount >= 2 && runeCount <= 100
}

// ValidateCreateParams 验证创建组织的参数
func (s *OrganizationService) ValidateCreateParams(code, name string) error {
	if !s.ValidateCode(code) {
		return fmt.Errorf("组织代码长度必须在2-50个字符之间，且只能包含字母、数字和下划线")
	}
	if !s.ValidateName(name) {
		return fmt.Errorf("组织名称长度必须在2-100个字符之间")
	}
	return nil
}
