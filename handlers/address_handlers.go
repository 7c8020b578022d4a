package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"member/middleware"
	"member/services"
)

type addressRequest struct {
	AddressLine1  string  `json:"address_line1" binding:"required"`
	AddressLine2  *string `json:"address_line2"`
	City          string  `json:"city" binding:"required"`
	StateProvince string  `json:"state_province" binding:"required"`
	ZipCode       string  `json:"zip_code" binding:"required"`
	Country       string  `json:"country" binding:"required"`
	IsDefault     bool    `json:"is_default"`
}

type addressPatchRequest struct {
	AddressLine1  *string `json:"address_line1"`
	AddressLine2  *string `json:"address_line2"`
	City          *string `json:"city"`
	StateProvince *string `json:"state_province"`
	ZipCode       *string `json:"zip_code"`
	Country       *string `json:"country"`
	IsDefault     *bool   `json:"is_default"`
}

// 解析路徑中的地址ID
func addressIDParam(c *gin.Context) (uint, bool) {
	addressID, err := strconv.ParseUint(c.Param("addressID"), 10, 64)
	if err != nil || addressID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "不合法的地址ID",
		})
		return 0, false
	}
	return uint(addressID), true
}

// 查詢地址列表
func GetAddressListHandler(c *gin.Context, addresses *services.AddressService, logger *slog.Logger) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, logger, services.ErrUnauthorized, "無法取得使用者")
		return
	}

	list, err := addresses.ListForUser(c.Request.Context(), user)
	if err != nil {
		respondError(c, logger, err, "查詢地址列表失敗")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "成功查詢地址列表",
		"addresses": list,
	})
}

// 新增送貨地址
func CreateAddressHandler(c *gin.Context, addresses *services.AddressService, logger *slog.Logger) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, logger, services.ErrUnauthorized, "無法取得使用者")
		return
	}

	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	address, err := addresses.Create(c.Request.Context(), user, services.AddressInput{
		AddressLine1:  req.AddressLine1,
		AddressLine2:  req.AddressLine2,
		City:          req.City,
		StateProvince: req.StateProvince,
		ZipCode:       req.ZipCode,
		Country:       req.Country,
		IsDefault:     req.IsDefault,
	})
	if err != nil {
		respondError(c, logger, err, "新增地址失敗")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "成功新增地址",
		"address": address,
	})
}

// 查詢地址詳細資料
func GetAddressHandler(c *gin.Context, addresses *services.AddressService, logger *slog.Logger) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, logger, services.ErrUnauthorized, "無法取得使用者")
		return
	}
	addressID, ok := addressIDParam(c)
	if !ok {
		return
	}

	address, err := addresses.Get(c.Request.Context(), user, addressID)
	if err != nil {
		respondError(c, logger, err, "查詢地址失敗")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "成功查詢地址",
		"address": address,
	})
}

// 修改地址，只更新有帶入的欄位
func UpdateAddressHandler(c *gin.Context, addresses *services.AddressService, logger *slog.Logger) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, logger, services.ErrUnauthorized, "無法取得使用者")
		return
	}
	addressID, ok := addressIDParam(c)
	if !ok {
		return
	}

	var req addressPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	address, err := addresses.Update(c.Request.Context(), user, addressID, services.AddressPatch{
		AddressLine1:  req.AddressLine1,
		AddressLine2:  req.AddressLine2,
		City:          req.City,
		StateProvince: req.StateProvince,
		ZipCode:       req.ZipCode,
		Country:       req.Country,
		IsDefault:     req.IsDefault,
	})
	if err != nil {
		respondError(c, logger, err, "修改地址失敗")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "成功修改地址",
		"address": address,
	})
}

// 刪除地址
func DeleteAddressHandler(c *gin.Context, addresses *services.AddressService, logger *slog.Logger) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, logger, services.ErrUnauthorized, "無法取得使用者")
		return
	}
	addressID, ok := addressIDParam(c)
	if !ok {
		return
	}

	if err := addresses.Delete(c.Request.Context(), user, addressID); err != nil {
		respondError(c, logger, err, "刪除地址失敗")
		return
	}

	c.Status(http.StatusNoContent)
}
