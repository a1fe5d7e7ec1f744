package api

import (
	"strconv"
	"time"

	"careledger/audit"
	"careledger/database"
	"careledger/models"
	"careledger/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProfileHandler 客户档案处理器
// 档案属 PHI：所有变更与审计日志同事务落库
type ProfileHandler struct {
	recorder *audit.Recorder
}

// NewProfileHandler 创建客户档案处理器
func NewProfileHandler(recorder *audit.Recorder) *ProfileHandler {
	return &ProfileHandler{recorder: recorder}
}

// ProfileRequest 创建/更新客户档案请求
type ProfileRequest struct {
	FirstName        string `json:"first_name" binding:"required,max=100"`
	LastName         string `json:"last_name" binding:"required,max=100"`
	DateOfBirth      string `json:"date_of_birth" example:"1945-06-01"`
	Phone            string `json:"phone" binding:"max=25"`
	Address          string `json:"address" binding:"max=255"`
	EmergencyContact string `json:"emergency_contact" binding:"max=100"`
	EmergencyPhone   string `json:"emergency_phone" binding:"max=25"`
	MedicalNotes     string `json:"medical_notes"`
}

// apply 把请求字段写入档案
func (r *ProfileRequest) apply(p *models.Profile) error {
	p.FirstName = r.FirstName
	p.LastName = r.LastName
	p.Phone = r.Phone
	p.Address = r.Address
	p.EmergencyContact = r.EmergencyContact
	p.EmergencyPhone = r.EmergencyPhone
	p.MedicalNotes = r.MedicalNotes
	if r.DateOfBirth != "" {
		dob, err := time.ParseInLocation("2006-01-02", r.DateOfBirth, time.Local)
		if err != nil {
			return err
		}
		p.DateOfBirth = &dob
	}
	return nil
}

// Create 创建客户档案
// @Summary 创建客户档案
// @Tags 客户档案
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProfileRequest true "档案信息"
// @Success 200 {object} Response{data=models.Profile} "创建成功"
// @Router /api/v1/profiles [post]
func (h *ProfileHandler) Create(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	var profile models.Profile
	if err := req.apply(&profile); err != nil {
		BadRequest(c, "出生日期格式错误，应为: 2006-01-02")
		return
	}

	actor := CurrentActor(c)
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		_, err := h.recorder.RecordMutation(repository.NewAuditLogs(tx), audit.Entry{
			Actor:          actor.Actor,
			EntityType:     profile.TableName(),
			EntityID:       profile.ID,
			Action:         models.AuditActionCreate,
			NewValues:      profile,
			Classification: profile.Classification(),
			ApprovedBy:     actor.Username,
		})
		return err
	})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "创建客户档案失败"))
		return
	}

	SuccessWithMessage(c, "创建成功", profile)
}

// Get 获取客户档案
// @Summary 获取客户档案
// @Tags 客户档案
// @Produce json
// @Security BearerAuth
// @Param id path int true "档案ID"
// @Success 200 {object} Response{data=models.Profile} "获取成功"
// @Failure 404 {object} Response "档案不存在"
// @Router /api/v1/profiles/{id} [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的档案ID")
		return
	}

	var profile models.Profile
	if err := database.DB.First(&profile, uint(id)).Error; err != nil {
		NotFound(c, "客户档案不存在")
		return
	}
	Success(c, profile)
}

// List 客户档案列表
// @Summary 客户档案列表
// @Tags 客户档案
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} Response{data=PageResponse{list=[]models.Profile}} "获取成功"
// @Router /api/v1/profiles [get]
func (h *ProfileHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var total int64
	if err := database.DB.Model(&models.Profile{}).Count(&total).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询客户档案失败"))
		return
	}

	var profiles []models.Profile
	if err := database.DB.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&profiles).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询客户档案失败"))
		return
	}

	Success(c, PageResponse{Total: total, Page: page, PageSize: pageSize, List: profiles})
}

// Update 更新客户档案
// @Summary 更新客户档案
// @Description 变更前后快照写入审计日志，与更新同事务
// @Tags 客户档案
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "档案ID"
// @Param request body ProfileRequest true "档案信息"
// @Success 200 {object} Response{data=models.Profile} "更新成功"
// @Router /api/v1/profiles/{id} [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的档案ID")
		return
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	var profile models.Profile
	if err := database.DB.First(&profile, uint(id)).Error; err != nil {
		NotFound(c, "客户档案不存在")
		return
	}

	before := profile
	if err := req.apply(&profile); err != nil {
		BadRequest(c, "出生日期格式错误，应为: 2006-01-02")
		return
	}

	actor := CurrentActor(c)
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&profile).Error; err != nil {
			return err
		}
		_, err := h.recorder.RecordMutation(repository.NewAuditLogs(tx), audit.Entry{
			Actor:          actor.Actor,
			EntityType:     profile.TableName(),
			EntityID:       profile.ID,
			Action:         models.AuditActionUpdate,
			OldValues:      before,
			NewValues:      profile,
			Classification: profile.Classification(),
			ApprovedBy:     actor.Username,
		})
		return err
	})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "更新客户档案失败"))
		return
	}

	SuccessWithMessage(c, "更新成功", profile)
}

// Delete 删除客户档案（软删除）
// @Summary 删除客户档案
// @Description PHI 删除按策略表需要审批人：非主管操作会被审批门槛拒绝并整体回滚
// @Tags 客户档案
// @Produce json
// @Security BearerAuth
// @Param id path int true "档案ID"
// @Success 200 {object} Response "删除成功"
// @Failure 403 {object} Response "需要主管审批"
// @Router /api/v1/profiles/{id} [delete]
func (h *ProfileHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的档案ID")
		return
	}

	var profile models.Profile
	if err := database.DB.First(&profile, uint(id)).Error; err != nil {
		NotFound(c, "客户档案不存在")
		return
	}

	actor := CurrentActor(c)
	approvedBy := ""
	if actor.CanApprove {
		approvedBy = actor.Username
	}
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		// 软删除保留 deletedAt 时间戳，供合规回溯
		if err := tx.Delete(&profile).Error; err != nil {
			return err
		}
		_, err := h.recorder.RecordMutation(repository.NewAuditLogs(tx), audit.Entry{
			Actor:          actor.Actor,
			EntityType:     profile.TableName(),
			EntityID:       profile.ID,
			Action:         models.AuditActionDelete,
			OldValues:      profile,
			Classification: profile.Classification(),
			ApprovedBy:     approvedBy,
		})
		return err
	})
	if err != nil {
		LedgerError(c, err)
		return
	}

	SuccessWithMessage(c, "删除成功", nil)
}
