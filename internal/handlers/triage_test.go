package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 分流判定依赖服务层错误文案中的子串，文案调整后这里必须跟着对齐，
// 否则参数类失败会错报为服务器错误（500而非400）

func TestAssignRoleParamErrorTriage(t *testing.T) {
	paramErrors := []string{
		"用户不存在",
		"角色不存在",
		"组织不存在",
		"角色已停用，不能授予",
		"过期时间必须晚于当前时间",
		"该用户已持有此角色的活跃授权",
		"角色 approver 的授权人数已达上限 5",
	}
	for _, msg := range paramErrors {
		assert.True(t, isAssignRoleParamError(msg), "应分流为参数错误: %s", msg)
	}

	assert.False(t, isAssignRoleParamError("数据库连接失败"))
}

func TestRoleParamErrorTriage(t *testing.T) {
	paramErrors := []string{
		"角色名已存在",
		"角色名长度必须在2-50个字符之间，且只能包含字母、数字和下划线",
		"角色名称长度必须在2-50个字符之间",
		"角色等级必须在1-100之间",
		"角色类型只能是 system、organization 或 custom",
		"非系统角色必须归属组织",
		"系统角色不允许停用",
		"系统角色不允许删除",
		"存在未知的权限ID",
		"存在未知的父角色ID",
		"权限 content:read 已停用，不能授予角色",
		"父角色设置会导致循环继承",
	}
	for _, msg := range paramErrors {
		assert.True(t, isRoleParamError(msg), "应分流为参数错误: %s", msg)
	}

	assert.False(t, isRoleParamError("数据库连接失败"))
}
