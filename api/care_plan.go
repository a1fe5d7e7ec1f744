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

// CarePlanHandler 护理计划处理器
type CarePlanHandler struct {
	recorder *audit.Recorder
}

// NewCarePlanHandler 创建护理计划处理器
func NewCarePlanHandler(recorder *audit.Recorder) *CarePlanHandler {
	return &CarePlanHandler{recorder: recorder}
}

// CarePlanRequest 创建/更新护理计划请求
type CarePlanRequest struct {
	ProfileID uint   `json:"profile_id" binding:"required"`
	Title     string `json:"title" binding:"required,max=200"`
	Goals     string `json:"goals"`
	CareNotes string `json:"care_notes"`
	StartDate string `json:"start_date" binding:"required" example:"2026-01-01"`
	EndDate   string `json:"end_date" example:"2026-06-30"`
}

// Create 创建护理计划
// @Summary 创建护理计划
// @Tags 护理计划
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CarePlanRequest true "护理计划"
// @Success 200 {object} Response{data=models.CarePlan} "创建成功"
// @Router /api/v1/care-plans [post]
func (h *CarePlanHandler) Create(c *gin.Context) {
	var req CarePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.Local)
	if err != nil {
		BadRequest(c, "开始日期格式错误，应为: 2006-01-02")
		return
	}

	plan := models.CarePlan{
		ProfileID: req.ProfileID,
		Title:     req.Title,
		Goals:     req.Goals,
		CareNotes: req.CareNotes,
		StartDate: startDate,
		Active:    true,
	}
	if req.EndDate != "" {
		endDate, err := time.ParseInLocation("2006-01-02", req.EndDate, time.Local)
		if err != nil {
			BadRequest(c, "结束日期格式错误，应为: 2006-01-02")
			return
		}
		plan.EndDate = &endDate
	}

	actor := CurrentActor(c)
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}
		_, err := h.recorder.RecordMutation(repository.NewAuditLogs(tx), audit.Entry{
			Actor:          actor.Actor,
			EntityType:     plan.TableName(),
			EntityID:       plan.ID,
			Action:         models.AuditActionCreate,
			NewValues:      plan,
			Classification: plan.Classification(),
			ApprovedBy:     actor.Username,
		})
		return err
	})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "创建护理计划失败"))
		return
	}

	SuccessWithMessage(c, "创建成功", plan)
}

// Update 更新护理计划
// @Summary 更新护理计划
// @Tags 护理计划
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "护理计划ID"
// @Param request body CarePlanRequest true "护理计划"
// @Success 200 {object} Response{data=models.CarePlan} "更新成功"
// @Router /api/v1/care-plans/{id} [put]
func (h *CarePlanHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的护理计划ID")
		return
	}

	var req CarePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	var plan models.CarePlan
	if err := database.DB.First(&plan, uint(id)).Error; err != nil {
		NotFound(c, "护理计划不存在")
		return
	}

	before := plan
	plan.Title = req.Title
	plan.Goals = req.Goals
	plan.CareNotes = req.CareNotes
	if startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.Local); err == nil {
		plan.StartDate = startDate
	}
	if req.EndDate != "" {
		if endDate, err := time.ParseInLocation("2006-01-02", req.EndDate, time.Local); err == nil {
			plan.EndDate = &endDate
		}
	}

	actor := CurrentActor(c)
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&plan).Error; err != nil {
			return err
		}
		_, err := h.recorder.RecordMutation(repository.NewAuditLogs(tx), audit.Entry{
			Actor:          actor.Actor,
			EntityType:     plan.TableName(),
			EntityID:       plan.ID,
			Action:         models.AuditActionUpdate,
			OldValues:      before,
			NewValues:      plan,
			Classification: plan.Classification(),
			ApprovedBy:     actor.Username,
		})
		return err
	})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "更新护理计划失败"))
		return
	}

	SuccessWithMessage(c, "更新成功", plan)
}

// List 按客户列出护理计划
// @Summary 护理计划列表
// @Tags 护理计划
// @Produce json
// @Security BearerAuth
// @Param profile_id query int true "客户档案ID"
// @Success 200 {object} Response{data=[]models.CarePlan} "获取成功"
// @Router /api/v1/care-plans [get]
func (h *CarePlanHandler) List(c *gin.Context) {
	profileID, err := strconv.ParseUint(c.Query("profile_id"), 10, 32)
	if err != nil {
		BadRequest(c, "请提供有效的 profile_id")
		return
	}

	var plans []models.CarePlan
	if err := database.DB.Where("profile_id = ?", uint(profileID)).
		Order("start_date DESC").
		Find(&plans).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询护理计划失败"))
		return
	}
	Success(c, plans)
}
