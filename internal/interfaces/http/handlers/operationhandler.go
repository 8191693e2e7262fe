package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"firmup/internal/application/firmware/usecases"
	"firmup/internal/domain/firmware"
	"firmup/internal/shared/logger"
	"firmup/internal/shared/utils"
)

// OperationHandler serves upgrade operations and batch rollup reports.
type OperationHandler struct {
	operationQueries *usecases.OperationQueries
	logger           logger.Interface
}

func NewOperationHandler(operationQueries *usecases.OperationQueries) *OperationHandler {
	return &OperationHandler{
		operationQueries: operationQueries,
		logger:           logger.NewLogger(),
	}
}

func (h *OperationHandler) Get(c *gin.Context) {
	op, err := h.operationQueries.GetOperation(c.Request.Context(), c.Param("sid"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toOperationResponse(op))
}

// List returns operations filtered by device_id, batch_id and status
// query parameters, paginated.
func (h *OperationHandler) List(c *gin.Context) {
	pagination := utils.ParsePagination(c)
	filter := firmware.OperationListFilter{
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
		Status:   c.Query("status"),
	}
	if v := c.Query("device_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid device_id")
			return
		}
		filter.DeviceID = uint(id)
	}
	if v := c.Query("batch_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid batch_id")
			return
		}
		filter.BatchID = uint(id)
	}

	ops, total, err := h.operationQueries.ListOperations(c.Request.Context(), filter)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.ListSuccessResponse(c, toOperationResponses(ops), total, pagination.Page, pagination.PageSize)
}

func (h *OperationHandler) ListBatches(c *gin.Context) {
	batches, err := h.operationQueries.ListBatches(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toBatchResponses(batches))
}

// GetBatchReport returns a batch with its child status rollup.
func (h *OperationHandler) GetBatchReport(c *gin.Context) {
	report, err := h.operationQueries.GetBatchReport(c.Request.Context(), c.Param("sid"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toBatchReportResponse(report))
}

func (h *OperationHandler) DeleteBatch(c *gin.Context) {
	if err := h.operationQueries.DeleteBatch(c.Request.Context(), c.Param("sid")); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	h.logger.Infow("batch upgrade operation deleted", "batch", c.Param("sid"))
	utils.NoContentResponse(c)
}
