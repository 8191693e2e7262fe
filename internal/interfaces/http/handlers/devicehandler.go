package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"firmup/internal/application/firmware/usecases"
	"firmup/internal/domain/firmware"
	"firmup/internal/shared/logger"
	"firmup/internal/shared/utils"
)

// DeviceHandler serves the device inventory and the firmware assignment
// entry point.
type DeviceHandler struct {
	registerDeviceUC   *usecases.RegisterDeviceUseCase
	createConnectionUC *usecases.CreateConnectionUseCase
	assignFirmwareUC   *usecases.AssignFirmwareUseCase
	catalogQueries     *usecases.CatalogQueries
	logger             logger.Interface
}

func NewDeviceHandler(
	registerDeviceUC *usecases.RegisterDeviceUseCase,
	createConnectionUC *usecases.CreateConnectionUseCase,
	assignFirmwareUC *usecases.AssignFirmwareUseCase,
	catalogQueries *usecases.CatalogQueries,
) *DeviceHandler {
	return &DeviceHandler{
		registerDeviceUC:   registerDeviceUC,
		createConnectionUC: createConnectionUC,
		assignFirmwareUC:   assignFirmwareUC,
		catalogQueries:     catalogQueries,
		logger:             logger.NewLogger(),
	}
}

type RegisterDeviceRequest struct {
	Name           string `json:"name" binding:"required"`
	OrganizationID uint   `json:"organization_id" binding:"required"`
	Model          string `json:"model"`
	OS             string `json:"os"`
	UUID           string `json:"uuid"`
}

func (h *DeviceHandler) Register(c *gin.Context) {
	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for register device", "error", err)
		utils.BindingErrorResponse(c, err)
		return
	}

	result, err := h.registerDeviceUC.Execute(c.Request.Context(), usecases.RegisterDeviceCommand{
		Name:           req.Name,
		OrganizationID: req.OrganizationID,
		Model:          req.Model,
		OS:             req.OS,
		UUID:           req.UUID,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, gin.H{
		"device":        toDeviceResponse(result.Device),
		"auto_assigned": result.AutoAssigned,
	})
}

func (h *DeviceHandler) List(c *gin.Context) {
	devices, err := h.catalogQueries.ListDevices(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toDeviceResponses(devices))
}

func (h *DeviceHandler) Get(c *gin.Context) {
	dev, err := h.catalogQueries.GetDevice(c.Request.Context(), c.Param("sid"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toDeviceResponse(dev))
}

// GetFirmware returns the device's current image binding, or an empty
// body when no firmware was assigned yet.
func (h *DeviceHandler) GetFirmware(c *gin.Context) {
	binding, err := h.catalogQueries.GetDeviceFirmware(c.Request.Context(), c.Param("sid"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if binding == nil {
		utils.SuccessResponse(c, http.StatusOK, "no firmware assigned", nil)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toDeviceFirmwareResponse(binding))
}

type CreateConnectionRequest struct {
	Credentials string   `json:"credentials" binding:"required"`
	User        string   `json:"user"`
	Port        int      `json:"port"`
	Addresses   []string `json:"addresses" binding:"required,min=1"`
	Connector   string   `json:"connector"`
}

func (h *DeviceHandler) CreateConnection(c *gin.Context) {
	var req CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for create connection", "error", err)
		utils.BindingErrorResponse(c, err)
		return
	}

	conn, err := h.createConnectionUC.Execute(c.Request.Context(), usecases.CreateConnectionCommand{
		DeviceSID:   c.Param("sid"),
		Credentials: req.Credentials,
		User:        req.User,
		Port:        req.Port,
		Addresses:   req.Addresses,
		Connector:   req.Connector,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, toConnectionResponse(conn))
}

func (h *DeviceHandler) ListConnections(c *gin.Context) {
	records, err := h.catalogQueries.ListConnections(c.Request.Context(), c.Param("sid"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	out := make([]ConnectionResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toConnectionResponse(record))
	}
	utils.SuccessResponse(c, http.StatusOK, "", out)
}

type AssignFirmwareRequest struct {
	ImageSID string                  `json:"image_sid" binding:"required"`
	Options  firmware.UpgradeOptions `json:"options"`
}

// AssignFirmware points the device at a target image and spawns the
// upgrade operation making it real.
func (h *DeviceHandler) AssignFirmware(c *gin.Context) {
	var req AssignFirmwareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for assign firmware", "error", err)
		utils.BindingErrorResponse(c, err)
		return
	}

	result, err := h.assignFirmwareUC.Execute(c.Request.Context(), usecases.AssignFirmwareCommand{
		DeviceSID: c.Param("sid"),
		ImageSID:  req.ImageSID,
		Options:   req.Options,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	body := gin.H{"device_firmware": toDeviceFirmwareResponse(result.DeviceFirmware)}
	if result.Operation != nil {
		body["operation"] = toOperationResponse(result.Operation)
	}
	utils.SuccessResponse(c, http.StatusAccepted, "", body)
}
