package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"firmup/internal/application/firmware/usecases"
	"firmup/internal/domain/firmware"
	"firmup/internal/shared/logger"
	"firmup/internal/shared/utils"
)

// FirmwareHandler serves the firmware catalog: categories, builds,
// uploaded images and batch rollouts.
type FirmwareHandler struct {
	createCategoryUC *usecases.CreateCategoryUseCase
	createBuildUC    *usecases.CreateBuildUseCase
	createImageUC    *usecases.CreateImageUseCase
	batchUpgradeUC   *usecases.BatchUpgradeUseCase
	catalogQueries   *usecases.CatalogQueries
	logger           logger.Interface
}

func NewFirmwareHandler(
	createCategoryUC *usecases.CreateCategoryUseCase,
	createBuildUC *usecases.CreateBuildUseCase,
	createImageUC *usecases.CreateImageUseCase,
	batchUpgradeUC *usecases.BatchUpgradeUseCase,
	catalogQueries *usecases.CatalogQueries,
) *FirmwareHandler {
	return &FirmwareHandler{
		createCategoryUC: createCategoryUC,
		createBuildUC:    createBuildUC,
		createImageUC:    createImageUC,
		batchUpgradeUC:   batchUpgradeUC,
		catalogQueries:   catalogQueries,
		logger:           logger.NewLogger(),
	}
}

type CreateCategoryRequest struct {
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	OrganizationID *uint  `json:"organization_id"`
}

func (h *FirmwareHandler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for create category", "error", err)
		utils.BindingErrorResponse(c, err)
		return
	}

	category, err := h.createCategoryUC.Execute(c.Request.Context(), usecases.CreateCategoryCommand{
		Name:           req.Name,
		Description:    req.Description,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, toCategoryResponse(category))
}

func (h *FirmwareHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalogQueries.ListCategories(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toCategoryResponses(categories))
}

type CreateBuildRequest struct {
	CategorySID string `json:"category_sid" binding:"required"`
	Version     string `json:"version" binding:"required"`
	OS          string `json:"os"`
	Changelog   string `json:"changelog"`
}

func (h *FirmwareHandler) CreateBuild(c *gin.Context) {
	var req CreateBuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for create build", "error", err)
		utils.BindingErrorResponse(c, err)
		return
	}

	build, err := h.createBuildUC.Execute(c.Request.Context(), usecases.CreateBuildCommand{
		CategorySID: req.CategorySID,
		Version:     req.Version,
		OS:          req.OS,
		Changelog:   req.Changelog,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, toBuildResponse(build))
}

func (h *FirmwareHandler) ListBuilds(c *gin.Context) {
	builds, err := h.catalogQueries.ListBuilds(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toBuildResponses(builds))
}

// UploadImage accepts a multipart form with the firmware binary in the
// "file" field and an optional "type" field overriding file name based
// type detection.
func (h *FirmwareHandler) UploadImage(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.logger.Warnw("missing file in image upload", "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "missing file field")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "could not read uploaded file")
		return
	}
	defer file.Close()

	image, err := h.createImageUC.Execute(c.Request.Context(), usecases.CreateImageCommand{
		BuildSID: c.Param("sid"),
		FileName: fileHeader.Filename,
		Content:  file,
		Type:     c.PostForm("type"),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, toImageResponse(image))
}

func (h *FirmwareHandler) ListImages(c *gin.Context) {
	images, err := h.catalogQueries.ListImages(c.Request.Context(), c.Param("sid"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toImageResponses(images))
}

type BatchUpgradeRequest struct {
	IncludeFirmwareless bool                    `json:"include_firmwareless"`
	Options             firmware.UpgradeOptions `json:"options"`
}

// BatchUpgrade starts a fleet-wide rollout of the build to every
// eligible device.
func (h *FirmwareHandler) BatchUpgrade(c *gin.Context) {
	var req BatchUpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for batch upgrade", "error", err)
		utils.BindingErrorResponse(c, err)
		return
	}

	result, err := h.batchUpgradeUC.Execute(c.Request.Context(), usecases.BatchUpgradeCommand{
		BuildSID:            c.Param("sid"),
		IncludeFirmwareless: req.IncludeFirmwareless,
		Options:             req.Options,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, gin.H{
		"batch":      toBatchResponse(result.Batch),
		"operations": toOperationResponses(result.Operations),
	})
}

// DryRunBatchUpgrade previews the device set a batch upgrade would
// touch, without creating anything.
func (h *FirmwareHandler) DryRunBatchUpgrade(c *gin.Context) {
	result, err := h.batchUpgradeUC.DryRun(c.Request.Context(), c.Param("sid"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toDryRunResponse(result))
}
