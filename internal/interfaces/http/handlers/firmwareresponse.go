package handlers

import (
	"strings"
	"time"

	"firmup/internal/application/firmware/usecases"
	"firmup/internal/domain/device"
	"firmup/internal/domain/firmware"
)

// CategoryResponse is the wire representation of a firmware category.
type CategoryResponse struct {
	SID            string    `json:"sid"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	OrganizationID *uint     `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toCategoryResponse(c *firmware.Category) CategoryResponse {
	return CategoryResponse{
		SID:            c.SID(),
		Name:           c.Name(),
		Description:    c.Description(),
		OrganizationID: c.OrganizationID(),
		CreatedAt:      c.CreatedAt(),
		UpdatedAt:      c.UpdatedAt(),
	}
}

func toCategoryResponses(categories []*firmware.Category) []CategoryResponse {
	out := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	return out
}

// BuildResponse is the wire representation of a firmware build.
type BuildResponse struct {
	SID       string    `json:"sid"`
	Version   string    `json:"version"`
	OS        string    `json:"os,omitempty"`
	Changelog string    `json:"changelog,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toBuildResponse(b *firmware.Build) BuildResponse {
	return BuildResponse{
		SID:       b.SID(),
		Version:   b.Version(),
		OS:        b.OS(),
		Changelog: b.Changelog(),
		CreatedAt: b.CreatedAt(),
		UpdatedAt: b.UpdatedAt(),
	}
}

func toBuildResponses(builds []*firmware.Build) []BuildResponse {
	out := make([]BuildResponse, 0, len(builds))
	for _, b := range builds {
		out = append(out, toBuildResponse(b))
	}
	return out
}

// ImageResponse is the wire representation of a firmware image.
type ImageResponse struct {
	SID       string    `json:"sid"`
	FileName  string    `json:"file_name"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	Type      string    `json:"type"`
	Boards    []string  `json:"boards"`
	CreatedAt time.Time `json:"created_at"`
}

func toImageResponse(i *firmware.Image) ImageResponse {
	return ImageResponse{
		SID:       i.SID(),
		FileName:  i.FileName(),
		Checksum:  i.Checksum(),
		Size:      i.Size(),
		Type:      i.Type(),
		Boards:    i.Boards(),
		CreatedAt: i.CreatedAt(),
	}
}

func toImageResponses(images []*firmware.Image) []ImageResponse {
	out := make([]ImageResponse, 0, len(images))
	for _, i := range images {
		out = append(out, toImageResponse(i))
	}
	return out
}

// DeviceResponse is the wire representation of a managed device.
type DeviceResponse struct {
	SID            string    `json:"sid"`
	Name           string    `json:"name"`
	OrganizationID uint      `json:"organization_id"`
	Model          string    `json:"model,omitempty"`
	OS             string    `json:"os,omitempty"`
	UUID           string    `json:"uuid"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toDeviceResponse(d *device.Device) DeviceResponse {
	return DeviceResponse{
		SID:            d.SID(),
		Name:           d.Name(),
		OrganizationID: d.OrganizationID(),
		Model:          d.Model(),
		OS:             d.OS(),
		UUID:           d.UUID().String(),
		CreatedAt:      d.CreatedAt(),
		UpdatedAt:      d.UpdatedAt(),
	}
}

func toDeviceResponses(devices []*device.Device) []DeviceResponse {
	out := make([]DeviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceResponse(d))
	}
	return out
}

// ConnectionResponse is the wire representation of a device connection.
type ConnectionResponse struct {
	ID            uint       `json:"id"`
	Credentials   string     `json:"credentials"`
	User          string     `json:"user"`
	Port          int        `json:"port"`
	Addresses     []string   `json:"addresses"`
	Connector     string     `json:"connector"`
	IsWorking     *bool      `json:"is_working,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	LastAttempt   *time.Time `json:"last_attempt,omitempty"`
}

func toConnectionResponse(c *device.DeviceConnection) ConnectionResponse {
	return ConnectionResponse{
		ID:            c.ID(),
		Credentials:   c.Credentials(),
		User:          c.User(),
		Port:          c.Port(),
		Addresses:     c.Addresses(),
		Connector:     c.Connector(),
		IsWorking:     c.IsWorking(),
		FailureReason: c.FailureReason(),
		LastAttempt:   c.LastAttempt(),
	}
}

// DeviceFirmwareResponse is the wire representation of a device/image
// binding.
type DeviceFirmwareResponse struct {
	ImageID   uint      `json:"image_id"`
	Installed bool      `json:"installed"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDeviceFirmwareResponse(df *firmware.DeviceFirmware) DeviceFirmwareResponse {
	return DeviceFirmwareResponse{
		ImageID:   df.ImageID(),
		Installed: df.Installed(),
		UpdatedAt: df.UpdatedAt(),
	}
}

// OperationResponse is the wire representation of an upgrade operation.
// The log is returned as individual lines, newest last.
type OperationResponse struct {
	SID       string                  `json:"sid"`
	DeviceID  uint                    `json:"device_id"`
	ImageID   *uint                   `json:"image_id,omitempty"`
	Status    string                  `json:"status"`
	Log       []string                `json:"log,omitempty"`
	Options   firmware.UpgradeOptions `json:"options,omitempty"`
	BatchSID  string                  `json:"batch_sid,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func toOperationResponse(op *firmware.UpgradeOperation) OperationResponse {
	var logLines []string
	if op.Log() != "" {
		logLines = strings.Split(op.Log(), "\n")
	}
	return OperationResponse{
		SID:       op.SID(),
		DeviceID:  op.DeviceID(),
		ImageID:   op.ImageID(),
		Status:    string(op.Status()),
		Log:       logLines,
		Options:   op.Options(),
		CreatedAt: op.CreatedAt(),
		UpdatedAt: op.UpdatedAt(),
	}
}

func toOperationResponses(ops []*firmware.UpgradeOperation) []OperationResponse {
	out := make([]OperationResponse, 0, len(ops))
	for _, op := range ops {
		out = append(out, toOperationResponse(op))
	}
	return out
}

// BatchResponse is the wire representation of a batch upgrade operation.
type BatchResponse struct {
	SID       string                  `json:"sid"`
	BuildID   uint                    `json:"build_id"`
	Status    string                  `json:"status"`
	Options   firmware.UpgradeOptions `json:"options,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func toBatchResponse(b *firmware.BatchUpgradeOperation) BatchResponse {
	return BatchResponse{
		SID:       b.SID(),
		BuildID:   b.BuildID(),
		Status:    string(b.Status()),
		Options:   b.Options(),
		CreatedAt: b.CreatedAt(),
		UpdatedAt: b.UpdatedAt(),
	}
}

func toBatchResponses(batches []*firmware.BatchUpgradeOperation) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, toBatchResponse(b))
	}
	return out
}

// BatchReportResponse is a batch together with its child rollup figures.
type BatchReportResponse struct {
	Batch       BatchResponse `json:"batch"`
	InProgress  int64         `json:"in_progress"`
	Success     int64         `json:"success"`
	Failed      int64         `json:"failed"`
	Aborted     int64         `json:"aborted"`
	Progress    string        `json:"progress"`
	SuccessRate float64       `json:"success_rate"`
	FailedRate  float64       `json:"failed_rate"`
	AbortedRate float64       `json:"aborted_rate"`
}

func toBatchReportResponse(report *usecases.BatchReport) BatchReportResponse {
	return BatchReportResponse{
		Batch:       toBatchResponse(report.Batch),
		InProgress:  report.Counts.InProgress,
		Success:     report.Counts.Success,
		Failed:      report.Counts.Failed,
		Aborted:     report.Counts.Aborted,
		Progress:    report.Progress,
		SuccessRate: report.SuccessRate,
		FailedRate:  report.FailedRate,
		AbortedRate: report.AbortedRate,
	}
}

// DryRunResponse previews the devices a batch upgrade would touch.
type DryRunResponse struct {
	RelatedDevices      []DeviceResponse `json:"related_devices"`
	FirmwarelessDevices []DeviceResponse `json:"firmwareless_devices"`
}

func toDryRunResponse(result *usecases.DryRunResult) DryRunResponse {
	return DryRunResponse{
		RelatedDevices:      toDeviceResponses(result.RelatedDevices),
		FirmwarelessDevices: toDeviceResponses(result.FirmwarelessDevices),
	}
}
