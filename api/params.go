package api

import (
	"strconv"
	"strings"
	"time"

	"wallet/service"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// idParam 解析路径中的 :id
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "无效的ID")
		return 0, false
	}
	return uint(id), true
}

// parseDate 空字符串返回 nil
func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(dateLayout, value, time.Local)
	if err != nil {
		return nil, service.NewValidationError(field, "日期格式应为 YYYY-MM-DD")
	}
	return &d, nil
}

// parseIDList 解析 "1,2,3"，同一参数也可重复出现
func parseIDList(field string, values []string) ([]uint, error) {
	var ids []uint
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil || id == 0 {
				return nil, service.NewValidationError(field, "ID 列表格式错误")
			}
			ids = append(ids, uint(id))
		}
	}
	return ids, nil
}

// pageParams 默认第 1 页每页 10 条，最多 100 条
func pageParams(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.Query("page"))
	pageSize, _ = strconv.Atoi(c.Query("page_size"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
